package order

import (
	"github.com/invopop/jsonschema"
)

// FunctionTool is a function-calling tool definition in the shape realtime
// session protocols expect: a name, a description the model picks on, and a
// JSON schema for the arguments.
type FunctionTool struct {
	Type        string             `json:"type"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

const (
	ToolGetOrderStatus   = "get_order_status"
	ToolFindOrdersByName = "find_orders_by_customer_name"
	ToolListAllOrders    = "list_all_orders"
)

type getOrderStatusArgs struct {
	OrderID string `json:"order_id" jsonschema:"description=Order id such as ORD-5001"`
}

type findOrdersByNameArgs struct {
	CustomerName string `json:"customer_name" jsonschema:"description=Full customer name as spoken by the caller"`
}

type listAllOrdersArgs struct{}

// Tools returns the function-calling surface of the order agent, for sessions
// where the model routes lookups itself instead of being intercepted.
func Tools() []FunctionTool {
	reflector := jsonschema.Reflector{DoNotReference: true}
	return []FunctionTool{
		{
			Type:        "function",
			Name:        ToolGetOrderStatus,
			Description: "Look up the status of a single order by its order id.",
			Parameters:  reflector.Reflect(getOrderStatusArgs{}),
		},
		{
			Type:        "function",
			Name:        ToolFindOrdersByName,
			Description: "Find all orders that belong to a customer, matched by name.",
			Parameters:  reflector.Reflect(findOrdersByNameArgs{}),
		},
		{
			Type:        "function",
			Name:        ToolListAllOrders,
			Description: "List every known order with its current status.",
			Parameters:  reflector.Reflect(listAllOrdersArgs{}),
		},
	}
}
