package advisory

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tbourn/go-crm-backend/internal/domain"
)

// Prompter renders the fixed prompt of each advisory kind together with its
// data snapshot. Numbers are formatted for the configured locale. Output is
// a pure function of the inputs so equal snapshots share a fingerprint.
type Prompter struct {
	p *message.Printer
}

// NewPrompter returns a Prompter formatting numbers for tag.
func NewPrompter(tag language.Tag) *Prompter {
	return &Prompter{p: message.NewPrinter(tag)}
}

// SalesLine is an aggregated sales row for one product.
type SalesLine struct {
	Product  string
	Quantity int64
	Revenue  float64
}

// BusinessMetrics is the headline snapshot used for global insights.
type BusinessMetrics struct {
	TotalClients     int64
	TotalProducts    int64
	TotalPurchases   int64
	TotalRevenue     float64
	MonthRevenue     float64
	NewClientsMonth  int64
	LowStockProducts int64
	HighChurnClients int64
}

const (
	maxOfferPurchases = 10
	maxOfferClients   = 5
)

// Churn asks for retention actions for one client.
func (pr *Prompter) Churn(c domain.Client) (prompt, data string) {
	prompt = pr.p.Sprintf("A client has a churn score of %.2f. "+
		"Which specific strategies would you recommend to reduce the risk of this client leaving? "+
		"Give 3-4 concrete, personalized actions.", c.ChurnScore)

	var b strings.Builder
	pr.p.Fprintf(&b, "Client: %s\n", c.FullName())
	pr.p.Fprintf(&b, "Churn score: %.2f\n", c.ChurnScore)
	pr.p.Fprintf(&b, "Total purchases: %d\n", c.TotalPurchases)
	pr.p.Fprintf(&b, "Lifetime value: $%.2f\n", c.LifetimeValue)
	return prompt, b.String()
}

// Offers asks for promotions given recent purchases and top clients. Only the
// first 10 purchases and 5 clients are included.
func (pr *Prompter) Offers(purchases []domain.Purchase, clients []domain.Client) (prompt, data string) {
	prompt = "Based on the purchase patterns and client behaviour, which specific offers or " +
		"promotions would you recommend to increase sales? Give 3-4 concrete suggestions with a rationale."

	var b strings.Builder
	b.WriteString("Recent purchases:\n")
	for i, p := range purchases {
		if i == maxOfferPurchases {
			break
		}
		pr.p.Fprintf(&b, "- %s x%d at $%.2f on %s\n", p.ProductName, p.Quantity, p.UnitPrice, p.PurchasedAt.UTC().Format("2006-01-02"))
	}
	b.WriteString("Clients:\n")
	for i, c := range clients {
		if i == maxOfferClients {
			break
		}
		pr.p.Fprintf(&b, "- %s: %d purchases, $%.2f lifetime, churn %.2f\n", c.FullName(), c.TotalPurchases, c.LifetimeValue, c.ChurnScore)
	}
	return prompt, b.String()
}

// Pricing asks for a pricing strategy for one product. sold is the all-time
// quantity sold.
func (pr *Prompter) Pricing(p domain.Product, sold int64) (prompt, data string) {
	prompt = pr.p.Sprintf("For the product %q with a current price of $%.2f, which pricing strategy "+
		"would you recommend? Consider demand, competition and profitability. Give specific recommendations.",
		p.Name, p.Price)

	var b strings.Builder
	pr.p.Fprintf(&b, "Product: %s\n", p.Name)
	pr.p.Fprintf(&b, "Current price: $%.2f\n", p.Price)
	pr.p.Fprintf(&b, "Current stock: %d (minimum %d)\n", p.CurrentStock, p.MinimumStock)
	pr.p.Fprintf(&b, "Units sold: %d\n", sold)
	return prompt, b.String()
}

// Restock asks for a monthly replenishment plan.
func (pr *Prompter) Restock(products []domain.Product, sales []SalesLine) (prompt, data string) {
	prompt = "Based on current stock levels and sales patterns, which monthly restock plan would you " +
		"recommend? Include specific quantities and priorities for each product."

	var b strings.Builder
	b.WriteString("Products in stock:\n")
	for _, p := range products {
		pr.p.Fprintf(&b, "- %s: stock %d, minimum %d, price $%.2f\n", p.Name, p.CurrentStock, p.MinimumStock, p.Price)
	}
	b.WriteString("Sales by product:\n")
	for _, s := range sales {
		pr.p.Fprintf(&b, "- %s: %d units, $%.2f\n", s.Product, s.Quantity, s.Revenue)
	}
	return prompt, b.String()
}

// Insights asks for strategic recommendations from the headline metrics.
func (pr *Prompter) Insights(m BusinessMetrics) (prompt, data string) {
	prompt = "Based on the overall business metrics, which strategic insights and improvement " +
		"recommendations would you give? Focus on growth and optimization opportunities."

	var b strings.Builder
	pr.p.Fprintf(&b, "Total clients: %d\n", m.TotalClients)
	pr.p.Fprintf(&b, "Total products: %d\n", m.TotalProducts)
	pr.p.Fprintf(&b, "Total purchases: %d\n", m.TotalPurchases)
	pr.p.Fprintf(&b, "Total revenue: $%.2f\n", m.TotalRevenue)
	pr.p.Fprintf(&b, "Revenue this month: $%.2f\n", m.MonthRevenue)
	pr.p.Fprintf(&b, "New clients this month: %d\n", m.NewClientsMonth)
	pr.p.Fprintf(&b, "Low stock products: %d\n", m.LowStockProducts)
	pr.p.Fprintf(&b, "High churn risk clients: %d\n", m.HighChurnClients)
	return prompt, b.String()
}
