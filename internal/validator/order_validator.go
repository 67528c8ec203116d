package validator

import (
	"errors"
	"reflect"
	"strings"

	"storefront/internal/usecase"

	playground "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const msgMissingRequired = "Missing required fields: user_id or items"

type orderValidator struct {
	v *playground.Validate
}

// Usecaseは interface を依存注入
func NewOrderValidator() usecase.OrderValidator {
	v := playground.New(playground.WithRequiredStructEnabled())

	// エラーのフィールド名はjsonタグ（price_at_purchaseなど）
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	// decimalは数値として比較する（gte=0など）
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})

	return &orderValidator{v: v}
}

// 注文入力を検証。結果は *usecase.ValidationError か nil。
func (o *orderValidator) ValidateCreateOrder(in usecase.CreateOrderInput) error {
	// 空白だけのuser_id/product_idは未指定と同じ
	in.UserID = strings.TrimSpace(in.UserID)
	items := make([]usecase.OrderLineInput, len(in.Items))
	for i, it := range in.Items {
		it.ProductID = strings.TrimSpace(it.ProductID)
		items[i] = it
	}
	if in.Items != nil {
		in.Items = items
	}

	err := o.v.Struct(in)
	if err == nil {
		return nil
	}

	var verrs playground.ValidationErrors
	if !errors.As(err, &verrs) {
		return &usecase.ValidationError{Message: err.Error()}
	}

	fields := make([]string, 0, len(verrs))
	missing := false
	for _, fe := range verrs {
		// CreateOrderInput.items[0].quantity -> items[0].quantity
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		fields = append(fields, ns)

		if ns == "user_id" || ns == "items" {
			missing = true
		}
	}

	if missing {
		return &usecase.ValidationError{Message: msgMissingRequired, Fields: fields}
	}
	return &usecase.ValidationError{Message: "Invalid order items", Fields: fields}
}
