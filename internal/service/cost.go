package service

import "context"

// CostBackend supplies the production cost of a SKU in cents. ok is false
// when the cost is unknown.
type CostBackend interface {
	GetCost(ctx context.Context, sku string) (costQ int64, ok bool, err error)
}

// NoopCostBackend never knows a cost.
type NoopCostBackend struct{}

func (NoopCostBackend) GetCost(context.Context, string) (int64, bool, error) {
	return 0, false, nil
}

// StaticCostBackend serves costs from a fixed table.
type StaticCostBackend map[string]int64

func (b StaticCostBackend) GetCost(_ context.Context, sku string) (int64, bool, error) {
	c, ok := b[sku]
	return c, ok, nil
}
