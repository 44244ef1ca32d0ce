package email

import (
	"fmt"
	"html"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/example/digital-storefront/internal/domain/order"
	"github.com/example/digital-storefront/internal/support"
)

var rupiahPrinter = message.NewPrinter(language.Indonesian)

// FormatRupiah renders an amount as "Rp 1.234.567".
func FormatRupiah(amount int64) string {
	return "Rp " + rupiahPrinter.Sprintf("%d", amount)
}

// BuildOrderConfirmationBody builds the HTML body for the order receipt
func BuildOrderConfirmationBody(o order.OrderPlaced) string {
	var itemsHTML strings.Builder
	for _, item := range o.Items {
		name := item.Title
		if name == "" {
			name = item.ProductRef
		}
		if item.Tier != "" {
			name += " (" + item.Tier + ")"
		}
		itemsHTML.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 12px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">%d</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">%s</td>
			</tr>`,
			html.EscapeString(name),
			item.Quantity,
			FormatRupiah(item.UnitPrice),
			FormatRupiah(item.UnitPrice*int64(item.Quantity)),
		))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: #0f766e; padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">Terima kasih atas pesanan Anda</h1>
	</div>

	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<p style="margin-top: 0;">Pembayaran Anda melalui %s telah kami terima.</p>

		<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
			<p style="margin: 0; font-size: 14px; color: #666;">Nomor pesanan</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">%s</p>
			<p style="margin: 5px 0 0 0; font-size: 12px; color: #666;">Referensi pembayaran: %s</p>
		</div>

		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 12px; text-align: left; font-weight: 600;">Layanan</th>
					<th style="padding: 12px; text-align: center; font-weight: 600;">Jumlah</th>
					<th style="padding: 12px; text-align: right; font-weight: 600;">Harga</th>
					<th style="padding: 12px; text-align: right; font-weight: 600;">Subtotal</th>
				</tr>
			</thead>
			<tbody>
				%s
			</tbody>
		</table>

		<div style="text-align: right; padding: 20px; background: #f8f9fa; border-radius: 5px;">
			<p style="margin: 0; font-size: 14px; color: #666;">Subtotal %s</p>
			<p style="margin: 0; font-size: 14px; color: #666;">Biaya layanan %s</p>
			<p style="margin: 10px 0 0 0; font-size: 24px; font-weight: bold; color: #0f766e;">Total %s</p>
		</div>

		<hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">

		<p style="font-size: 12px; color: #999; margin-bottom: 0;">
			Email ini dikirim otomatis. Balas email ini jika ada pertanyaan tentang pesanan Anda.
		</p>
	</div>
</body>
</html>`,
		html.EscapeString(o.Method),
		html.EscapeString(o.OrderID),
		html.EscapeString(o.TransactionID),
		itemsHTML.String(),
		FormatRupiah(o.Subtotal),
		FormatRupiah(o.Fee),
		FormatRupiah(o.Total),
	)
}

// BuildSupportTicketBody renders a ticket for the support inbox. Ticket text is
// already sanitized.
func BuildSupportTicketBody(t support.Ticket) string {
	orderLine := ""
	if t.OrderID != "" {
		orderLine = fmt.Sprintf(`<p style="margin: 0;">Pesanan: <code>%s</code></p>`, t.OrderID)
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h2 style="font-size: 18px; border-bottom: 2px solid #0f766e; padding-bottom: 10px;">%s</h2>
	<p style="margin: 0;">Dari: %s &lt;%s&gt;</p>
	%s
	<p style="margin: 0; font-size: 12px; color: #999;">Tiket %s, %s</p>
	<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0; white-space: pre-wrap;">%s</div>
</body>
</html>`,
		t.Subject,
		t.Name,
		html.EscapeString(t.Email),
		orderLine,
		t.ID,
		t.CreatedAt.Format("02 Jan 2006 15:04 MST"),
		t.Message,
	)
}
