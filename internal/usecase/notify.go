package usecase

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"cstore-agent/internal/domain"
)

const (
	confirmationSubject = "Your order has been received!"
	fallbackProductName = "Retail Demo Store Product"
)

var confirmationHTML = htmltemplate.Must(htmltemplate.New("confirmation.html").Parse(`
<head></head>
<body>
    <h1>Welcome,</h1>
    <h2>Your order has been paid for with Amazon Pay.</h2>
    <p>We will meet you at your pump with the following order ({{.OrderIDs}}):
    <ul>{{range .Orders}}
      <li>Order #{{.ID}}:<ul>{{range .Lines}}
        <li><a href="{{.URL}}">{{.Name}}</a> - ${{.Price}}<br/>{{if .Image}}<a href="{{.URL}}"><img src="{{.Image}}" width="100px"></a>{{end}}</li>{{end}}
      </ul></li>{{end}}
    </ul>
    <p><a href="{{.WebURL}}">Thank you for shopping!</a></p>
</body>
`))

var confirmationText = texttemplate.Must(texttemplate.New("confirmation.txt").Parse(`
Welcome,
Your order has been paid for with Amazon Pay.
We will meet you at your pump with the following order ({{.OrderIDs}}):
{{range .Orders}}
Order #{{.ID}}:{{range .Lines}}
  - {{.Name}} - ${{.Price}} {{.URL}}{{end}}{{end}}
Thank you for shopping!
{{.WebURL}}
`))

type emailView struct {
	OrderIDs string
	Orders   []emailOrder
	WebURL   string
}

type emailOrder struct {
	ID    string
	Lines []emailLine
}

type emailLine struct {
	Name  string
	Price string
	URL   string
	Image string
}

// confirmationEmail renders the order-received message for receipts. Product
// details come from the session catalog; images are only embedded when
// withImages is set.
func confirmationEmail(to string, receipts []domain.OrderReceipt, attrs domain.SessionAttributes, webURL string, withImages bool) (domain.Email, error) {
	view := emailView{WebURL: webURL}
	ids := make([]string, 0, len(receipts))
	for _, r := range receipts {
		id := fmt.Sprint(r.ID)
		ids = append(ids, "#"+id)

		order := emailOrder{ID: id}
		for _, item := range r.Items {
			line := emailLine{Name: fallbackProductName, Price: money(item.Price)}
			if p, ok := attrs.Products[item.ProductID]; ok {
				if p.Name != "" {
					line.Name = p.Name
				}
				line.URL = p.URL
				if withImages {
					line.Image = p.Image
				}
			}
			order.Lines = append(order.Lines, line)
		}
		view.Orders = append(view.Orders, order)
	}
	view.OrderIDs = strings.Join(ids, ", ")

	var html, text bytes.Buffer
	if err := confirmationHTML.Execute(&html, view); err != nil {
		return domain.Email{}, fmt.Errorf("usecase: render confirmation html: %w", err)
	}
	if err := confirmationText.Execute(&text, view); err != nil {
		return domain.Email{}, fmt.Errorf("usecase: render confirmation text: %w", err)
	}
	return domain.Email{
		To:      to,
		Subject: confirmationSubject,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

// money formats a dollar amount the way it is spoken and charged.
func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
