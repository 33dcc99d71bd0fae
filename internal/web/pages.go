package web

import (
	"context"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/a-h/templ"
	"github.com/muraturkgeldi/qrstock/internal/nav"
	"github.com/muraturkgeldi/qrstock/internal/orders"
	"github.com/muraturkgeldi/qrstock/internal/stocksink"
)

func page(title, body string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var sb strings.Builder
		sb.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"/>`)
		sb.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1"/>`)
		sb.WriteString(`<title>`)
		sb.WriteString(html.EscapeString(title))
		sb.WriteString(` | QRStock</title>`)
		sb.WriteString(`<link rel="stylesheet" href="/static/styles.css"/></head><body>`)
		sb.WriteString(`<div class="page">`)
		sb.WriteString(renderTopbar())
		sb.WriteString(body)
		sb.WriteString(`</div></body></html>`)
		_, err := io.WriteString(w, sb.String())
		return err
	})
}

func renderTopbar() string {
	return `<header class="topbar"><span class="brand">QRStock</span>` +
		`<nav><a href="/">Dashboard</a><a href="/orders">Orders</a><a href="/login">Sign in</a></nav></header>`
}

func LoginPage() templ.Component {
	body := `<form class="login-form" method="post" action="/api/auth/login">` +
		`<h2>Sign in</h2>` +
		`<input type="text" name="username" placeholder="Username" autocomplete="username"/>` +
		`<input type="password" name="password" placeholder="Password" autocomplete="current-password"/>` +
		`<button type="submit">Sign in</button>` +
		`</form>`
	return page("Sign in", body)
}

// DashboardPage shows the on-hand quantities from the stock read model.
func DashboardPage(levels []stocksink.StockLevel) templ.Component {
	var sb strings.Builder
	sb.WriteString(`<div class="card"><h2>Stock on hand</h2>`)
	if len(levels) == 0 {
		sb.WriteString(`<p class="muted">No received items yet.</p>`)
	} else {
		sb.WriteString(`<table><thead><tr><th>SKU</th><th>On hand</th></tr></thead><tbody>`)
		for _, level := range levels {
			sb.WriteString(`<tr><td>`)
			sb.WriteString(html.EscapeString(level.ProductSKU))
			sb.WriteString(`</td><td>`)
			sb.WriteString(formatQuantity(level.OnHand))
			sb.WriteString(`</td></tr>`)
		}
		sb.WriteString(`</tbody></table>`)
	}
	sb.WriteString(`</div>`)
	return page("Dashboard", sb.String())
}

// OrdersPage lists purchase orders. Every order link carries the list's own
// location so the order page can offer a faithful back link.
func OrdersPage(list []orders.PurchaseOrder, current string) templ.Component {
	var sb strings.Builder
	sb.WriteString(`<div class="card"><h2>Purchase orders</h2>`)
	if len(list) == 0 {
		sb.WriteString(`<p class="muted">No orders yet.</p>`)
	} else {
		sb.WriteString(`<table><thead><tr><th>Order</th><th>Status</th><th>Items</th><th>Updated</th></tr></thead><tbody>`)
		for _, order := range list {
			href := nav.AnnotateHref("/orders/"+order.ID, current)
			sb.WriteString(`<tr><td><a href="`)
			sb.WriteString(html.EscapeString(href))
			sb.WriteString(`">`)
			sb.WriteString(html.EscapeString(order.ID))
			sb.WriteString(`</a></td><td>`)
			sb.WriteString(renderStatus(order.Status))
			sb.WriteString(`</td><td>`)
			sb.WriteString(fmt.Sprintf("%d", len(order.Items)))
			sb.WriteString(`</td><td class="muted">`)
			sb.WriteString(order.UpdatedAt.Format("2006-01-02 15:04"))
			sb.WriteString(`</td></tr>`)
		}
		sb.WriteString(`</tbody></table>`)
	}
	sb.WriteString(`</div>`)
	return page("Orders", sb.String())
}

// OrderPage shows a single order with its items and audit trail. backHref is
// the already-resolved return path for the back link.
func OrderPage(order orders.PurchaseOrder, events []orders.EventRecord, backHref string) templ.Component {
	var sb strings.Builder
	sb.WriteString(`<a class="back-link" href="`)
	sb.WriteString(html.EscapeString(backHref))
	sb.WriteString(`">&larr; Back</a>`)

	sb.WriteString(`<div class="card"><h2>Order `)
	sb.WriteString(html.EscapeString(order.ID))
	sb.WriteString(`</h2><p>`)
	sb.WriteString(renderStatus(order.Status))
	if order.Supplier != "" {
		sb.WriteString(` <span class="muted">supplier: `)
		sb.WriteString(html.EscapeString(order.Supplier))
		sb.WriteString(`</span>`)
	}
	sb.WriteString(`</p>`)

	if len(order.Items) == 0 {
		sb.WriteString(`<p class="muted">No items.</p>`)
	} else {
		sb.WriteString(`<table><thead><tr><th>SKU</th><th>Name</th><th>Ordered</th><th>Received</th><th>Remaining</th></tr></thead><tbody>`)
		for _, item := range order.Items {
			sb.WriteString(`<tr><td>`)
			sb.WriteString(html.EscapeString(item.ProductSKU))
			sb.WriteString(`</td><td>`)
			sb.WriteString(html.EscapeString(item.Name))
			sb.WriteString(`</td><td>`)
			sb.WriteString(formatQuantity(item.Quantity))
			sb.WriteString(`</td><td>`)
			sb.WriteString(formatQuantity(item.ReceivedQuantity))
			sb.WriteString(`</td><td>`)
			sb.WriteString(formatQuantity(item.RemainingQuantity))
			sb.WriteString(`</td></tr>`)
		}
		sb.WriteString(`</tbody></table>`)
	}
	sb.WriteString(`</div>`)

	sb.WriteString(`<div class="card"><h2>History</h2>`)
	if len(events) == 0 {
		sb.WriteString(`<p class="muted">No events recorded.</p>`)
	} else {
		for _, event := range events {
			sb.WriteString(renderEventItem(event))
		}
	}
	sb.WriteString(`</div>`)
	return page("Order "+order.ID, sb.String())
}

func renderEventItem(event orders.EventRecord) string {
	var sb strings.Builder
	sb.WriteString(`<div class="event-item"><span class="kind">`)
	sb.WriteString(html.EscapeString(eventLabel(event)))
	sb.WriteString(`</span><div class="muted">`)
	actor := strings.TrimSpace(event.Actor.DisplayName)
	if actor == "" {
		actor = event.Actor.UID
	}
	sb.WriteString(html.EscapeString(actor))
	sb.WriteString(` at `)
	sb.WriteString(event.At.Format("2006-01-02 15:04:05"))
	sb.WriteString(`</div></div>`)
	return sb.String()
}

func eventLabel(event orders.EventRecord) string {
	switch event.Kind {
	case orders.KindOrderCreated:
		return fmt.Sprintf("Order created with %d items", event.ItemCount)
	case orders.KindItemsUpdated:
		return fmt.Sprintf("Items updated (%d items)", event.ItemCount)
	case orders.KindStatusChanged:
		label := fmt.Sprintf("Status %s to %s", event.FromStatus, event.ToStatus)
		if event.Reason != "" {
			label += " (" + event.Reason + ")"
		}
		return label
	case orders.KindItemReceived:
		return fmt.Sprintf("Received %s of %s", formatQuantity(event.Quantity), event.ProductSKU)
	default:
		return string(event.Kind)
	}
}

func renderStatus(status orders.OrderStatus) string {
	return fmt.Sprintf(`<span class="status status-%s">%s</span>`,
		html.EscapeString(string(status)), html.EscapeString(string(status)))
}

func formatQuantity(q float64) string {
	s := fmt.Sprintf("%.2f", q)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
