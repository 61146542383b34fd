package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/bridge-core/core/audio"
)

type playbackClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	sequencer *audio.OutputSequencer
	encoding  audio.EncodingInfo

	// remainder is the unplayed tail of the last drained packet, together
	// with the sequence it came from so a skip can invalidate it too.
	remainder    []byte
	remainderSeq uint64

	mu sync.Mutex
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext, sequencer *audio.OutputSequencer, encoding audio.EncodingInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sequencer == nil {
		return fmt.Errorf("playback needs a sequencer")
	}
	if encoding.IsZero() {
		return fmt.Errorf("playback needs an encoding")
	}
	c.sequencer = sequencer
	c.encoding = encoding

	sampleRate := uint32(encoding.SampleRate)
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := encoding.Format.ByteSize() * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Playback)
	c.config.SampleRate = sampleRate
	c.config.Playback.Format = format
	c.config.Playback.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PeriodSizeInFrames = sampleRate / 10 // ~100ms of audio
	c.config.Periods = 4

	c.audioContext = audioContext

	var err error
	if c.device, err = malgo.InitDevice(
		c.audioContext.Context,
		c.config,
		malgo.DeviceCallbacks{Data: c.processAudio(bytesPerFrame)},
	); err != nil {
		return err
	}

	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}

	c.remainder = nil
	return nil
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	c.device.Uninit()
	c.device = nil

	return nil
}

// processAudio fills each device period straight from the sequencer. Stale
// packets are dropped by the sequencer itself; the remainder is checked
// against the cursor so a skip silences even a half-played packet.
func (c *playbackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame
		filled := 0

		c.mu.Lock()
		defer c.mu.Unlock()

		if len(c.remainder) > 0 && c.remainderSeq < c.sequencer.Base() {
			c.remainder = nil
		}

		for filled < need {
			if len(c.remainder) > 0 {
				n := copy(pOutput[filled:need], c.remainder)
				filled += n
				c.remainder = c.remainder[n:]
				continue
			}

			packet, ok := c.sequencer.TryDrain()
			if !ok {
				// Underrun, pad the rest of the period with silence.
				silence := c.encoding.SilenceValue()
				for i := filled; i < need; i++ {
					pOutput[i] = silence
				}
				return
			}
			if packet.IsEnd() {
				continue
			}
			c.remainder = packet.Payload
			c.remainderSeq = packet.Sequence
		}
	}
}
