// Package pdf renders printable order documents with maroto.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	orderdomain "github.com/smallbiznis/qatech/internal/order/domain"
)

// Store identifies the seller printed in the invoice header.
type Store struct {
	Name    string
	Address string
	Email   string
}

type Renderer struct {
	store Store
	loc   *time.Location
}

func New(store Store) *Renderer {
	if store.Name == "" {
		store.Name = "QATech"
	}
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		loc = time.FixedZone("ICT", 7*60*60)
	}
	return &Renderer{store: store, loc: loc}
}

func (r *Renderer) RenderOrderInvoice(ctx context.Context, order orderdomain.Order) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(8, r.store.Name, props.Text{Size: 18, Style: fontstyle.Bold, Align: align.Left}),
		text.NewCol(4, "INVOICE", props.Text{Size: 14, Style: fontstyle.Bold, Align: align.Right}),
	)
	m.AddRow(16,
		col.New(6).Add(
			text.New(r.store.Address, props.Text{Size: 9}),
			text.New(r.store.Email, props.Text{Size: 9, Top: 5}),
		),
		col.New(6).Add(
			text.New("Order: "+order.OrderCode, props.Text{Size: 9, Align: align.Right}),
			text.New("Date: "+order.CreatedAt.In(r.loc).Format("02/01/2006 15:04"), props.Text{Size: 9, Top: 5, Align: align.Right}),
			text.New("Status: "+string(order.Status), props.Text{Size: 9, Top: 10, Align: align.Right}),
		),
	)

	ship := order.ShippingAddress.Data()
	m.AddRow(26,
		col.New(12).Add(
			text.New("Ship to", props.Text{Size: 10, Style: fontstyle.Bold}),
			text.New(ship.FullName, props.Text{Size: 9, Top: 5}),
			text.New(ship.Phone, props.Text{Size: 9, Top: 10}),
			text.New(joinAddress(ship), props.Text{Size: 9, Top: 15}),
		),
	)

	m.AddRow(8,
		text.NewCol(6, "Item", props.Text{Size: 9, Style: fontstyle.Bold}),
		text.NewCol(2, "Qty", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
	)
	m.AddRow(2, line.NewCol(12))

	for _, item := range order.Items {
		m.AddRow(8,
			text.NewCol(6, item.Name, props.Text{Size: 9}),
			text.NewCol(2, strconv.Itoa(item.Quantity), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, FormatVND(item.Price), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, FormatVND(item.Price*int64(item.Quantity)), props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(2, line.NewCol(12))
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Size: 10, Style: fontstyle.Bold}),
		text.NewCol(2, FormatVND(order.TotalAmount), props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
	)
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Payment", props.Text{Size: 9}),
		text.NewCol(2, strings.ToUpper(string(order.PaymentMethod)), props.Text{Size: 9, Align: align.Right}),
	)
	if order.PaidAt != nil {
		m.AddRow(8,
			col.New(8),
			text.NewCol(2, "Paid", props.Text{Size: 9}),
			text.NewCol(2, order.PaidAt.In(r.loc).Format("02/01/2006 15:04"), props.Text{Size: 9, Align: align.Right}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate invoice: %w", err)
	}
	return bytes.NewReader(doc.GetBytes()), nil
}

// FormatVND renders whole dong with dot grouping, e.g. 1.250.000 VND.
func FormatVND(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	return sign + b.String() + " VND"
}

func joinAddress(addr orderdomain.ShippingAddress) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{addr.Address, addr.Ward, addr.District, addr.City} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
