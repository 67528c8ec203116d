package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/logging"
	repo "storefront/internal/repository"
	"storefront/internal/saga"
	"storefront/internal/telemetry"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	StepInsertOrder      = "db.insert.orders"
	StepInsertOrderItems = "db.insert.order_items"
)

// 入力の形チェック。internal/validator が実装する。
type OrderValidator interface {
	ValidateCreateOrder(in CreateOrderInput) error
}

// 注文イベントの送信先（Kafkaなど）。失敗しても注文結果は変えない。
type OrderEventPublisher interface {
	OrderCreated(ctx context.Context, out OrderOutput) error
	CompensationFailed(ctx context.Context, orderID string, userID string, cause error) error
}

type OrderOptions struct {
	VerifyTotal  bool          // trueならtotalをサーバー側で再計算して比較
	StepTimeout  time.Duration // insert/delete 1回ごとの上限
	EventTimeout time.Duration // イベント送信1回の上限（0ならdefaultEventTimeout）
}

const defaultEventTimeout = 2 * time.Second

type OrderUsecase struct {
	orders    repo.OrderRepository
	items     repo.OrderItemRepository
	validator OrderValidator
	events    OrderEventPublisher
	metrics   *telemetry.Metrics
	opts      OrderOptions
	tracer    trace.Tracer
}

// DI（events/metricsはnil可）
func NewOrderUsecase(
	orders repo.OrderRepository,
	items repo.OrderItemRepository,
	validator OrderValidator,
	events OrderEventPublisher,
	metrics *telemetry.Metrics,
	opts OrderOptions,
) *OrderUsecase {
	if events == nil {
		events = NopOrderEvents{}
	}
	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}
	return &OrderUsecase{
		orders:    orders,
		items:     items,
		validator: validator,
		events:    events,
		metrics:   metrics,
		opts:      opts,
		tracer:    otel.Tracer(telemetry.TracerName),
	}
}

// POST /create-order の入力
type CreateOrderInput struct {
	UserID string           `json:"user_id" validate:"required"`
	Items  []OrderLineInput `json:"items" validate:"required,min=1,dive"`
	Total  *decimal.Decimal `json:"total,omitempty"`
}

type OrderLineInput struct {
	ProductID       string          `json:"product_id" validate:"required"`
	Quantity        int64           `json:"quantity" validate:"gte=1"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase" validate:"gte=0"`
}

type OrderItemOutput struct {
	ID              string  `json:"id"`
	OrderID         string  `json:"order_id"`
	ProductID       string  `json:"product_id"`
	Quantity        int64   `json:"quantity"`
	PriceAtPurchase float64 `json:"price_at_purchase"`
}

type OrderOutput struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Total     float64           `json:"total"`
	Status    string            `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	Items     []OrderItemOutput `json:"items"`
}

// CreateOrder は注文ヘッダ→注文明細の順にinsertする。
// 明細が失敗したらヘッダを削除（補償）してから失敗を返す。
// 同じ入力で2回呼べば注文は2つできる（重複排除はしない）。
func (u *OrderUsecase) CreateOrder(ctx context.Context, in CreateOrderInput) (OrderOutput, error) {
	log := logging.FromContext(ctx).With("flow", "create_order")
	log.Info("order request received", "user_id", in.UserID, "item_count", len(in.Items))

	//永続化の前に形チェック
	if err := u.validator.ValidateCreateOrder(in); err != nil {
		return OrderOutput{}, u.reject(log, err)
	}
	total, err := u.resolveTotal(in)
	if err != nil {
		return OrderOutput{}, u.reject(log, err)
	}
	log.Info("order validated", "user_id", in.UserID, "item_count", len(in.Items), "total", total.String())

	var order model.Order
	var inserted []model.OrderItem

	s := saga.New("POST /create-order",
		saga.WithStepTimeout(u.opts.StepTimeout),
		saga.WithTracer(u.tracer),
		saga.WithHooks(u.hooks(log)),
	)

	//注文ヘッダ
	s.AddStep(saga.Step{
		Name: StepInsertOrder,
		Action: func(ctx context.Context) error {
			created, err := u.orders.Insert(ctx, model.Order{
				UserID: strings.TrimSpace(in.UserID),
				Total:  total,
				Status: model.OrderStatusPending,
			})
			if err != nil {
				return err
			}
			order = created
			log.Info("order record created", "order_id", order.ID, "user_id", order.UserID, "total", order.Total.String(), "status", order.Status)
			return nil
		},
		Compensate: func(ctx context.Context) error {
			return u.orders.Delete(ctx, order.ID)
		},
	})

	//注文明細一括作成
	s.AddStep(saga.Step{
		Name: StepInsertOrderItems,
		Action: func(ctx context.Context) error {
			rows := make([]model.OrderItem, 0, len(in.Items))
			for _, it := range in.Items {
				rows = append(rows, model.OrderItem{
					OrderID:         order.ID,
					ProductID:       strings.TrimSpace(it.ProductID),
					Quantity:        it.Quantity,
					PriceAtPurchase: it.PriceAtPurchase.Round(2),
				})
			}
			items, err := u.items.InsertBulk(ctx, rows)
			if err != nil {
				return err
			}
			inserted = items
			log.Info("order items inserted", "order_id", order.ID, "items_count", len(inserted))
			return nil
		},
	})

	if err := s.Run(ctx); err != nil {
		return OrderOutput{}, u.failure(ctx, log, order, err)
	}

	out := toOrderOutput(order, inserted)
	u.metrics.OrdersCreated.Inc()
	log.Info("order creation completed", "order_id", out.ID, "user_id", out.UserID, "total", order.Total.String(), "items_count", len(out.Items))

	// 注文はもう確定しているので、切断されても通知は送る
	ectx, cancel := u.eventContext(context.WithoutCancel(ctx))
	defer cancel()
	if err := u.events.OrderCreated(ectx, out); err != nil {
		log.Warn("order event publish failed", "order_id", out.ID, "error", err.Error())
	}
	return out, nil
}

// GetOrder は注文と明細を返す。
func (u *OrderUsecase) GetOrder(ctx context.Context, orderID string) (OrderOutput, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return OrderOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	items, err := u.items.ListByOrderID(ctx, orderID)
	if err != nil {
		return OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return toOrderOutput(o, items), nil
}

// totalが来ていればそのまま使う（0は未指定扱い）。無ければ Σ quantity × price_at_purchase。
// DBは numeric(12,2) なので、ここで2桁に丸めてレスポンスと保存値を揃える。
func (u *OrderUsecase) resolveTotal(in CreateOrderInput) (decimal.Decimal, error) {
	computed := ComputeTotal(in.Items).Round(2)
	if in.Total == nil || in.Total.IsZero() {
		return computed, nil
	}
	if u.opts.VerifyTotal && !in.Total.Round(2).Equal(computed) {
		return decimal.Zero, &ValidationError{
			Message: fmt.Sprintf("total %s does not match items total %s", in.Total.String(), computed.String()),
			Fields:  []string{"total"},
		}
	}
	return in.Total.Round(2), nil
}

// ComputeTotal は保存される単価（2桁に丸めた値）で合計する。
func ComputeTotal(items []OrderLineInput) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.PriceAtPurchase.Round(2).Mul(decimal.NewFromInt(it.Quantity)))
	}
	return total
}

func (u *OrderUsecase) reject(log *slog.Logger, err error) error {
	u.metrics.OrderFailures.WithLabelValues("validation").Inc()
	log.Warn("order rejected", "error", err.Error())
	return err
}

// sagaの失敗をPersistenceErrorにする。補償の失敗は別に記録して結合する。
func (u *OrderUsecase) failure(ctx context.Context, log *slog.Logger, order model.Order, err error) error {
	var f *saga.Failure
	if !errors.As(err, &f) {
		return &PersistenceError{Message: err.Error(), Err: err}
	}

	pe := &PersistenceError{Op: f.Step, Err: f.Err, Timeout: f.TimedOut}
	switch f.Step {
	case StepInsertOrder:
		pe.Message = "Failed to create order: " + f.Err.Error()
	default:
		pe.Message = "Failed to create order items: " + f.Err.Error()
	}

	kind := "persistence"
	if pe.Timeout {
		kind = "timeout"
	}
	u.metrics.OrderFailures.WithLabelValues(kind).Inc()
	log.Error("order creation failed", "step", f.Step, "error", pe.Message, "timeout", pe.Timeout)

	if len(f.Compensations) == 0 {
		return pe
	}

	// リクエストが切れていてもアラートは送る
	actx, cancel := u.eventContext(context.WithoutCancel(ctx))
	defer cancel()

	errs := []error{pe}
	for _, ce := range f.Compensations {
		// 注文ヘッダだけが残っている（明細なしのpending）
		log.Error("order compensation failed, orphaned pending order", "order_id", order.ID, "step", ce.Step, "error", ce.Err.Error())
		if perr := u.events.CompensationFailed(actx, order.ID, order.UserID, ce); perr != nil {
			log.Warn("compensation alert publish failed", "order_id", order.ID, "error", perr.Error())
		}
		errs = append(errs, ce)
	}
	return errors.Join(errs...)
}

// イベント送信でレスポンスを長く止めない
func (u *OrderUsecase) eventContext(ctx context.Context) (context.Context, context.CancelFunc) {
	d := u.opts.EventTimeout
	if d <= 0 {
		d = defaultEventTimeout
	}
	return context.WithTimeout(ctx, d)
}

func (u *OrderUsecase) hooks(log *slog.Logger) saga.Hooks {
	return saga.Hooks{
		StepStarted: func(_ context.Context, step string) {
			log.Debug("order step started", "step", step)
		},
		StepSucceeded: func(_ context.Context, step string, took time.Duration) {
			u.metrics.StepDuration.WithLabelValues(step).Observe(took.Seconds())
		},
		StepFailed: func(_ context.Context, step string, took time.Duration, err error) {
			u.metrics.StepDuration.WithLabelValues(step).Observe(took.Seconds())
			log.Warn("order step failed", "step", step, "error", err.Error())
		},
		Compensated: func(_ context.Context, step string, err error) {
			if err != nil {
				u.metrics.Compensations.WithLabelValues("failed").Inc()
				return
			}
			u.metrics.Compensations.WithLabelValues("ok").Inc()
			log.Info("order compensated", "step", step)
		},
	}
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ID:              it.ID,
			OrderID:         it.OrderID,
			ProductID:       it.ProductID,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.PriceAtPurchase.InexactFloat64(),
		})
	}

	return OrderOutput{
		ID:        o.ID,
		UserID:    o.UserID,
		Total:     o.Total.InexactFloat64(),
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
		Items:     outItems,
	}
}

// イベント送信なし
type NopOrderEvents struct{}

func (NopOrderEvents) OrderCreated(context.Context, OrderOutput) error { return nil }
func (NopOrderEvents) CompensationFailed(context.Context, string, string, error) error {
	return nil
}
