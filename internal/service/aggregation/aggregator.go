// Package aggregation sums the unpaid line items of a counterparty over a
// period and lists the advances a farmer settlement deducts.
package aggregation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/dairy/internal/domain/models"
	"github.com/mamadbah2/dairy/internal/repository"
)

// Period is the unpaid activity of one counterparty in a window.
type Period struct {
	Items         []models.LineItem
	TotalQuantity decimal.Decimal
	TotalAmount   decimal.Decimal
}

// ItemIDs lists the ids of the aggregated items in date order.
func (p Period) ItemIDs() []string {
	ids := make([]string, 0, len(p.Items))
	for _, item := range p.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

// PendingAdvance is an outstanding advance and the part still to recover.
type PendingAdvance struct {
	Advance   models.Advance
	Remaining decimal.Decimal
}

// Deductions are the advances a farmer settlement recovers in full.
type Deductions struct {
	Advances []PendingAdvance
	Total    decimal.Decimal
}

// AdvanceIDs lists the ids of the deducted advances.
func (d Deductions) AdvanceIDs() []string {
	ids := make([]string, 0, len(d.Advances))
	for _, a := range d.Advances {
		ids = append(ids, a.Advance.ID)
	}
	return ids
}

// Aggregator reads line items and advances. It never writes.
type Aggregator struct {
	r repository.Reader
}

// New creates an aggregator reading from r.
func New(r repository.Reader) *Aggregator {
	return &Aggregator{r: r}
}

// Within returns an aggregator reading through a transaction.
func (a *Aggregator) Within(tx repository.Reader) *Aggregator {
	return &Aggregator{r: tx}
}

// AggregateUnpaid sums the unpaid items of a counterparty inside w. Sums use
// each item's persisted amount; an empty result is a valid zero period.
func (a *Aggregator) AggregateUnpaid(ctx context.Context, flow models.Flow, ownerID, counterpartyID string, w models.Window) (Period, error) {
	unpaid := false
	items, err := a.r.FindLineItems(ctx, models.LineItemQuery{
		Flow:           flow,
		OwnerID:        ownerID,
		CounterpartyID: counterpartyID,
		Window:         w,
		Paid:           &unpaid,
	})
	if err != nil {
		return Period{}, fmt.Errorf("aggregate unpaid %s items: %w", flow, err)
	}
	return summarise(items), nil
}

// ItemsByID resolves an explicit selection of unpaid items. Every id must
// name an unpaid item of the counterparty.
func (a *Aggregator) ItemsByID(ctx context.Context, flow models.Flow, ownerID, counterpartyID string, ids []string) (Period, error) {
	unique := dedupe(ids)
	if len(unique) == 0 {
		return summarise(nil), nil
	}

	unpaid := false
	items, err := a.r.FindLineItems(ctx, models.LineItemQuery{
		Flow:           flow,
		OwnerID:        ownerID,
		CounterpartyID: counterpartyID,
		Paid:           &unpaid,
		IDs:            unique,
	})
	if err != nil {
		return Period{}, fmt.Errorf("load selected %s items: %w", flow, err)
	}
	if len(items) != len(unique) {
		found := make(map[string]struct{}, len(items))
		for _, item := range items {
			found[item.ID] = struct{}{}
		}
		for _, id := range unique {
			if _, ok := found[id]; !ok {
				return Period{}, fmt.Errorf("unpaid %s item %s: %w", flow, id, models.ErrNotFound)
			}
		}
	}
	return summarise(items), nil
}

// PendingAdvances lists every outstanding advance of a farmer. Advances are
// not period scoped.
func (a *Aggregator) PendingAdvances(ctx context.Context, ownerID, farmerID string) (Deductions, error) {
	advances, err := a.r.FindAdvances(ctx, models.AdvanceQuery{
		OwnerID:  ownerID,
		FarmerID: farmerID,
		Statuses: []models.AdvanceStatus{models.AdvancePending, models.AdvancePartial},
	})
	if err != nil {
		return Deductions{}, fmt.Errorf("load pending advances: %w", err)
	}

	d := Deductions{Advances: make([]PendingAdvance, 0, len(advances)), Total: decimal.Zero}
	for _, adv := range advances {
		remaining := adv.Remaining()
		d.Advances = append(d.Advances, PendingAdvance{Advance: adv, Remaining: remaining})
		d.Total = d.Total.Add(remaining)
	}
	return d, nil
}

func summarise(items []models.LineItem) Period {
	if items == nil {
		items = []models.LineItem{}
	}
	p := Period{Items: items, TotalQuantity: decimal.Zero, TotalAmount: decimal.Zero}
	for _, item := range items {
		p.TotalQuantity = p.TotalQuantity.Add(item.Quantity)
		p.TotalAmount = p.TotalAmount.Add(item.Amount)
	}
	return p
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
