package order

import (
	"context"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/pos-backoffice/internal/domain/customer"
	"github.com/xenking/pos-backoffice/internal/domain/product"
	"github.com/xenking/pos-backoffice/internal/domain/reward"
)

// ItemRequest is one requested product-quantity pair.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// CreateOrderRequest holds the input for creating an order.
// An empty CustomerID means a guest sale; discounts then cannot be applied
// and no reward accrues.
type CreateOrderRequest struct {
	CustomerID    string
	CashierID     string
	PaymentMethod string
	Discount      decimal.Decimal
	Items         []ItemRequest
}

// UpdateOrderRequest holds a partial order update. Nil fields are left
// unchanged. Setting CustomerID to an empty string detaches the customer;
// supplying Items replaces the whole line set.
type UpdateOrderRequest struct {
	CustomerID    *string
	PaymentMethod *string
	Status        *Status
	Discount      *decimal.Decimal
	Items         []ItemRequest
}

// Config carries the pricing parameters the coordinator applies.
type Config struct {
	TaxRate decimal.Decimal
	Rewards reward.Table
}

// Service is the order transaction coordinator. Every mutating operation
// runs as one atomic unit of work spanning the order aggregate, the touched
// product stock rows, and the touched customer wallet rows. Row locks are
// always acquired in the same sequence: the order row first, then products
// (sorted by id), then customers (sorted by id), so concurrent operations
// cannot deadlock.
type Service struct {
	products  product.Repository
	customers customer.Repository
	orders    Repository
	tx        Tx
	taxRate   decimal.Decimal
	rewards   reward.Table
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	cfg Config,
	products product.Repository,
	customers customer.Repository,
	orders Repository,
	tx Tx,
) *Service {
	return &Service{
		products:  products,
		customers: customers,
		orders:    orders,
		tx:        tx,
		taxRate:   cfg.TaxRate,
		rewards:   cfg.Rewards,
	}
}

// CreateOrder validates the request, snapshots product prices, decrements
// stock, applies the store-credit discount, accrues the loyalty reward, and
// persists the order with its lines. All effects commit together or roll
// back together.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if req.CashierID == "" {
		return nil, ErrCashierRequired
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if req.Discount.IsNegative() {
		return nil, ErrNegativeDiscount
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
	}
	if req.Discount.IsPositive() && req.CustomerID == "" {
		return nil, ErrDiscountRequiresCustomer
	}

	var created *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		now := time.Now()

		sameDay, err := s.orders.CountByDate(ctx, now)
		if err != nil {
			return errors.Wrap(err, "count orders for receipt")
		}

		locked, err := s.lockProducts(ctx, itemProductIDs(req.Items))
		if err != nil {
			return err
		}

		var cust *customer.Customer
		if req.CustomerID != "" {
			cust, err = s.customers.GetForUpdate(ctx, req.CustomerID)
			if err != nil {
				return err
			}
			if cust.Balance.LessThan(req.Discount) {
				return &InsufficientBalanceError{
					CustomerID: cust.ID,
					Balance:    cust.Balance,
					Required:   req.Discount,
				}
			}
		}

		requested := quantityByProduct(req.Items)
		for _, id := range sortedKeys(requested) {
			p := locked[id]
			if p.Stock < requested[id] {
				return &InsufficientStockError{
					ProductID:   p.ID,
					ProductName: p.Name,
					Available:   p.Stock,
					Requested:   requested[id],
				}
			}
		}

		subtotal := decimal.Zero
		lines := make([]Line, len(req.Items))
		for i, item := range req.Items {
			p := locked[item.ProductID]
			lineSubtotal := p.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			lines[i] = Line{
				ID:        uuid.New().String(),
				ProductID: p.ID,
				Quantity:  item.Quantity,
				Price:     p.Price,
				Subtotal:  lineSubtotal,
			}
			subtotal = subtotal.Add(lineSubtotal)
		}

		for _, id := range sortedKeys(requested) {
			if err := s.products.AdjustStock(ctx, id, -requested[id]); err != nil {
				return errors.Wrap(err, "decrement stock")
			}
		}

		totals := ComputeTotals(subtotal, req.Discount, s.taxRate)
		o := &Order{
			ID:            uuid.New().String(),
			CustomerID:    req.CustomerID,
			CashierID:     req.CashierID,
			OrderDate:     now,
			Status:        StatusPending,
			PaymentMethod: req.PaymentMethod,
			Total:         totals.Subtotal,
			Discount:      totals.Discount,
			TaxAmount:     totals.TaxAmount,
			GrandTotal:    totals.GrandTotal,
			ReceiptNumber: receiptNumber(now, sameDay+1),
			Lines:         lines,
		}
		if err := s.orders.Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}

		if cust != nil {
			if req.Discount.IsPositive() {
				if err := s.customers.AdjustBalance(ctx, cust.ID, req.Discount.Neg()); err != nil {
					return errors.Wrap(err, "debit discount")
				}
			}
			if bonus := s.rewards.BonusFor(subtotal); bonus.IsPositive() {
				if err := s.customers.AdjustBalance(ctx, cust.ID, bonus); err != nil {
					return errors.Wrap(err, "credit reward")
				}
			}
		}

		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateOrder applies a partial update to an existing order. Changing the
// discount or the customer re-books the store credit: the old discount is
// refunded to the old customer's wallet before the new discount is verified
// against and debited from the new customer's wallet. Supplying Items
// replaces the whole line set; stock is adjusted by the net per-product
// difference so partially reused quantities never trip a transient
// out-of-stock failure. Totals are recomputed on every update and the reward
// is re-evaluated against the new subtotal.
func (s *Service) UpdateOrder(ctx context.Context, id string, req UpdateOrderRequest) (*Order, error) {
	if req.Discount != nil && req.Discount.IsNegative() {
		return nil, ErrNegativeDiscount
	}
	if req.Status != nil && !req.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if req.Items != nil {
		if len(req.Items) == 0 {
			return nil, ErrEmptyItems
		}
		for _, item := range req.Items {
			if item.Quantity <= 0 {
				return nil, &InvalidQuantityError{ProductID: item.ProductID}
			}
		}
	}

	var updated *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		oldCustomerID := o.CustomerID
		oldSubtotal := o.Total
		oldDiscount := o.Discount

		newCustomerID := oldCustomerID
		if req.CustomerID != nil {
			newCustomerID = *req.CustomerID
		}
		newDiscount := oldDiscount
		if req.Discount != nil {
			newDiscount = *req.Discount
		}
		if newDiscount.IsPositive() && newCustomerID == "" {
			return ErrDiscountRequiresCustomer
		}

		// Lock products before customers.
		var locked map[string]*product.Product
		if req.Items != nil {
			ids := append(itemProductIDs(req.Items), lineProductIDs(o.Lines)...)
			locked, err = s.lockProducts(ctx, ids)
			if err != nil {
				return err
			}
		}
		custs, err := s.lockCustomers(ctx, oldCustomerID, newCustomerID)
		if err != nil {
			return err
		}

		// Re-book the store-credit discount when its amount or its funding
		// customer changes: refund the old debit first, then verify and
		// debit the new one.
		if !newDiscount.Equal(oldDiscount) || newCustomerID != oldCustomerID {
			if oldCustomerID != "" && oldDiscount.IsPositive() {
				if err := s.customers.AdjustBalance(ctx, oldCustomerID, oldDiscount); err != nil {
					return errors.Wrap(err, "refund old discount")
				}
			}
			if newDiscount.IsPositive() {
				payer := custs[newCustomerID]
				balance := payer.Balance
				if newCustomerID == oldCustomerID {
					// The refund above is not visible in the snapshot
					// taken at lock time.
					balance = balance.Add(oldDiscount)
				}
				if balance.LessThan(newDiscount) {
					return &InsufficientBalanceError{
						CustomerID: payer.ID,
						Balance:    balance,
						Required:   newDiscount,
					}
				}
				if err := s.customers.AdjustBalance(ctx, newCustomerID, newDiscount.Neg()); err != nil {
					return errors.Wrap(err, "debit new discount")
				}
			}
		}

		newSubtotal := oldSubtotal
		if req.Items != nil {
			oldQty := quantityByLine(o.Lines)
			newQty := quantityByProduct(req.Items)

			// Validate every product against the stock it would end up
			// with before mutating anything.
			for _, pid := range sortedKeys(newQty) {
				p := locked[pid]
				effective := p.Stock + oldQty[pid]
				if effective < newQty[pid] {
					return &InsufficientStockError{
						ProductID:   p.ID,
						ProductName: p.Name,
						Available:   p.Stock,
						Requested:   newQty[pid],
					}
				}
			}

			subtotal := decimal.Zero
			lines := make([]Line, len(req.Items))
			for i, item := range req.Items {
				p := locked[item.ProductID]
				lineSubtotal := p.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
				lines[i] = Line{
					ID:        uuid.New().String(),
					ProductID: p.ID,
					Quantity:  item.Quantity,
					Price:     p.Price,
					Subtotal:  lineSubtotal,
				}
				subtotal = subtotal.Add(lineSubtotal)
			}

			if err := s.orders.ReplaceLines(ctx, o.ID, lines); err != nil {
				return errors.Wrap(err, "replace lines")
			}

			deltas := map[string]int{}
			for pid, q := range oldQty {
				deltas[pid] += q
			}
			for pid, q := range newQty {
				deltas[pid] -= q
			}
			for _, pid := range sortedKeys(deltas) {
				if deltas[pid] == 0 {
					continue
				}
				if err := s.products.AdjustStock(ctx, pid, deltas[pid]); err != nil {
					return errors.Wrap(err, "adjust stock")
				}
			}

			o.Lines = lines
			newSubtotal = subtotal
		}

		totals := ComputeTotals(newSubtotal, newDiscount, s.taxRate)
		o.Total = totals.Subtotal
		o.Discount = totals.Discount
		o.TaxAmount = totals.TaxAmount
		o.GrandTotal = totals.GrandTotal
		o.CustomerID = newCustomerID
		if req.PaymentMethod != nil {
			o.PaymentMethod = *req.PaymentMethod
		}
		if req.Status != nil {
			o.Status = *req.Status
		}
		if err := s.orders.UpdateHeader(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}

		// Move or resize the accrued reward: as one signed delta when the
		// customer stays, as a reversal plus a fresh grant when it changes.
		oldReward := s.rewards.BonusFor(oldSubtotal)
		newReward := s.rewards.BonusFor(newSubtotal)
		if newCustomerID != oldCustomerID {
			if oldCustomerID != "" && oldReward.IsPositive() {
				if err := s.customers.AdjustBalance(ctx, oldCustomerID, oldReward.Neg()); err != nil {
					return errors.Wrap(err, "reverse reward")
				}
			}
			if newCustomerID != "" && newReward.IsPositive() {
				if err := s.customers.AdjustBalance(ctx, newCustomerID, newReward); err != nil {
					return errors.Wrap(err, "grant reward")
				}
			}
		} else if oldCustomerID != "" {
			if diff := newReward.Sub(oldReward); !diff.IsZero() {
				if err := s.customers.AdjustBalance(ctx, oldCustomerID, diff); err != nil {
					return errors.Wrap(err, "adjust reward")
				}
			}
		}

		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteOrder reverses every standing effect of the order (discount refund,
// reward take-back, stock restore) and removes the order with its lines,
// all atomically.
func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if _, err := s.lockProducts(ctx, lineProductIDs(o.Lines)); err != nil {
			return err
		}
		if o.CustomerID != "" {
			if _, err := s.customers.GetForUpdate(ctx, o.CustomerID); err != nil {
				return err
			}
			if o.Discount.IsPositive() {
				if err := s.customers.AdjustBalance(ctx, o.CustomerID, o.Discount); err != nil {
					return errors.Wrap(err, "refund discount")
				}
			}
			if bonus := s.rewards.BonusFor(o.Total); bonus.IsPositive() {
				if err := s.customers.AdjustBalance(ctx, o.CustomerID, bonus.Neg()); err != nil {
					return errors.Wrap(err, "reverse reward")
				}
			}
		}

		restored := quantityByLine(o.Lines)
		for _, pid := range sortedKeys(restored) {
			if err := s.products.AdjustStock(ctx, pid, restored[pid]); err != nil {
				return errors.Wrap(err, "restore stock")
			}
		}

		if err := s.orders.Delete(ctx, o.ID); err != nil {
			return errors.Wrap(err, "delete order")
		}
		return nil
	})
}

// AddLine appends one line to an existing order: validates stock, snapshots
// the current product price, decrements stock, recomputes totals, and
// adjusts the customer's reward by the accrual difference.
func (s *Service) AddLine(ctx context.Context, orderID string, item ItemRequest) (*Order, error) {
	if item.Quantity <= 0 {
		return nil, &InvalidQuantityError{ProductID: item.ProductID}
	}

	var updated *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		p, err := s.products.GetForUpdate(ctx, item.ProductID)
		if err != nil {
			return err
		}
		if o.CustomerID != "" {
			if _, err := s.customers.GetForUpdate(ctx, o.CustomerID); err != nil {
				return err
			}
		}

		if p.Stock < item.Quantity {
			return &InsufficientStockError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Available:   p.Stock,
				Requested:   item.Quantity,
			}
		}

		line := Line{
			ID:        uuid.New().String(),
			ProductID: p.ID,
			Quantity:  item.Quantity,
			Price:     p.Price,
			Subtotal:  p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
		}
		if err := s.orders.InsertLine(ctx, o.ID, line); err != nil {
			return errors.Wrap(err, "insert line")
		}
		if err := s.products.AdjustStock(ctx, p.ID, -item.Quantity); err != nil {
			return errors.Wrap(err, "decrement stock")
		}

		oldSubtotal := o.Total
		newSubtotal := oldSubtotal.Add(line.Subtotal)
		if err := s.applyTotals(ctx, o, newSubtotal); err != nil {
			return err
		}
		if err := s.adjustRewardDelta(ctx, o.CustomerID, oldSubtotal, newSubtotal); err != nil {
			return err
		}

		o.Lines = append(o.Lines, line)
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RemoveLine removes one line from an order, restoring its stock and
// recomputing totals and reward accrual. The last remaining line cannot be
// removed; the whole order must be deleted instead.
func (s *Service) RemoveLine(ctx context.Context, orderID, lineID string) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		var line *Line
		for i := range o.Lines {
			if o.Lines[i].ID == lineID {
				line = &o.Lines[i]
				break
			}
		}
		if line == nil {
			return ErrLineNotFound
		}
		if len(o.Lines) == 1 {
			return ErrLastLine
		}

		if _, err := s.products.GetForUpdate(ctx, line.ProductID); err != nil {
			return err
		}
		if o.CustomerID != "" {
			if _, err := s.customers.GetForUpdate(ctx, o.CustomerID); err != nil {
				return err
			}
		}

		if err := s.products.AdjustStock(ctx, line.ProductID, line.Quantity); err != nil {
			return errors.Wrap(err, "restore stock")
		}
		if err := s.orders.DeleteLine(ctx, o.ID, line.ID); err != nil {
			return errors.Wrap(err, "delete line")
		}

		oldSubtotal := o.Total
		newSubtotal := oldSubtotal.Sub(line.Subtotal)
		if newSubtotal.IsNegative() {
			newSubtotal = decimal.Zero
		}
		if err := s.applyTotals(ctx, o, newSubtotal); err != nil {
			return err
		}
		return s.adjustRewardDelta(ctx, o.CustomerID, oldSubtotal, newSubtotal)
	})
}

// UpdateStatus sets the order status. It has no side effects on stock or
// wallet balances.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, status Status) (*Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	var updated *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		o.Status = status
		if err := s.orders.UpdateHeader(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Get returns one order with its lines.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.Get(ctx, id)
}

// List returns all orders, most recent first.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	return s.orders.List(ctx)
}

// SearchByCustomerName returns orders whose customer name contains the given
// substring, case-insensitively, most recent first.
func (s *Service) SearchByCustomerName(ctx context.Context, name string) ([]Order, error) {
	return s.orders.SearchByCustomerName(ctx, name)
}

// applyTotals recomputes the monetary summary for the new subtotal and
// persists the order header.
func (s *Service) applyTotals(ctx context.Context, o *Order, subtotal decimal.Decimal) error {
	totals := ComputeTotals(subtotal, o.Discount, s.taxRate)
	o.Total = totals.Subtotal
	o.TaxAmount = totals.TaxAmount
	o.GrandTotal = totals.GrandTotal
	if err := s.orders.UpdateHeader(ctx, o); err != nil {
		return errors.Wrap(err, "update order")
	}
	return nil
}

// adjustRewardDelta applies the signed difference between the rewards earned
// at the old and new subtotals to the customer's wallet. Guest orders accrue
// nothing.
func (s *Service) adjustRewardDelta(ctx context.Context, customerID string, oldSubtotal, newSubtotal decimal.Decimal) error {
	if customerID == "" {
		return nil
	}
	diff := s.rewards.BonusFor(newSubtotal).Sub(s.rewards.BonusFor(oldSubtotal))
	if diff.IsZero() {
		return nil
	}
	if err := s.customers.AdjustBalance(ctx, customerID, diff); err != nil {
		return errors.Wrap(err, "adjust reward")
	}
	return nil
}

// lockProducts acquires row locks on the given products in sorted id order
// and returns them keyed by id.
func (s *Service) lockProducts(ctx context.Context, ids []string) (map[string]*product.Product, error) {
	locked := make(map[string]*product.Product, len(ids))
	for _, id := range sortedUnique(ids) {
		p, err := s.products.GetForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = p
	}
	return locked, nil
}

// lockCustomers acquires row locks on the given customers in sorted id
// order, skipping empty ids, and returns them keyed by id.
func (s *Service) lockCustomers(ctx context.Context, ids ...string) (map[string]*customer.Customer, error) {
	locked := make(map[string]*customer.Customer, len(ids))
	for _, id := range sortedUnique(ids) {
		if id == "" {
			continue
		}
		c, err := s.customers.GetForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = c
	}
	return locked, nil
}

func itemProductIDs(items []ItemRequest) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}
	return ids
}

func lineProductIDs(lines []Line) []string {
	ids := make([]string, len(lines))
	for i, line := range lines {
		ids[i] = line.ProductID
	}
	return ids
}

func quantityByProduct(items []ItemRequest) map[string]int {
	q := make(map[string]int, len(items))
	for _, item := range items {
		q[item.ProductID] += item.Quantity
	}
	return q
}

func quantityByLine(lines []Line) map[string]int {
	q := make(map[string]int, len(lines))
	for _, line := range lines {
		q[line.ProductID] += line.Quantity
	}
	return q
}

func sortedUnique(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
