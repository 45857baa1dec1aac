package datagen

import (
	"context"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/pgEdge/pgedge-starload/internal/extract"
	"github.com/pgEdge/pgedge-starload/internal/logging"
)

const timestampLayout = "2006-01-02 15:04:05"

// Config controls the size and noise of a generated data set.
type Config struct {
	// Orders is the number of orders to generate. Other sources scale from it.
	Orders int

	// Seed makes the output reproducible. Zero picks a random seed.
	Seed uint64

	// DuplicateRatio is the share of rows repeated verbatim in each file.
	DuplicateRatio float64

	// NoiseRatio is the probability of injecting a dirty value where the
	// cleaners are expected to repair or flag it.
	NoiseRatio float64
}

// DefaultConfig returns a small, noisy data set configuration.
func DefaultConfig() Config {
	return Config{
		Orders:         1000,
		DuplicateRatio: 0.01,
		NoiseRatio:     0.02,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Orders < 1 {
		return fmt.Errorf("orders must be at least 1, got %d", c.Orders)
	}
	if c.DuplicateRatio < 0 || c.DuplicateRatio > 1 {
		return fmt.Errorf("duplicate ratio must be between 0 and 1, got %g", c.DuplicateRatio)
	}
	if c.NoiseRatio < 0 || c.NoiseRatio > 1 {
		return fmt.Errorf("noise ratio must be between 0 and 1, got %g", c.NoiseRatio)
	}
	return nil
}

// Reference data
var (
	places = []struct{ city, state string }{
		{"sao paulo", "sp"}, {"campinas", "sp"}, {"santos", "sp"},
		{"rio de janeiro", "rj"}, {"niteroi", "rj"},
		{"belo horizonte", "mg"}, {"uberlandia", "mg"},
		{"curitiba", "pr"}, {"porto alegre", "rs"}, {"salvador", "ba"},
		{"recife", "pe"}, {"fortaleza", "ce"}, {"brasilia", "df"},
	}

	categories = []struct{ pt, en string }{
		{"beleza_saude", "health_beauty"},
		{"cama_mesa_banho", "bed_bath_table"},
		{"esporte_lazer", "sports_leisure"},
		{"informatica_acessorios", "computers_accessories"},
		{"moveis_decoracao", "furniture_decor"},
		{"utilidades_domesticas", "housewares"},
		{"relogios_presentes", "watches_gifts"},
		{"telefonia", "telephony"},
		{"brinquedos", "toys"},
		{"automotivo", "auto"},
	}

	// untranslated has no row in the translation file.
	untranslated = "pc_gamer"

	orderStatuses  = []string{"delivered", "shipped", "canceled", "unavailable", "invoiced", "processing", "created", "approved"}
	statusWeights  = []int{90, 4, 2, 1, 1, 1, 1, 0}
	paymentTypes   = []string{"credit_card", "boleto", "voucher", "debit_card"}
	paymentWeights = []int{74, 19, 5, 2}

	purchaseStart = time.Date(2016, 9, 1, 0, 0, 0, 0, time.UTC)
	purchaseEnd   = time.Date(2018, 8, 31, 0, 0, 0, 0, time.UTC)
)

// Summary reports the rows written per source, duplicates included.
type Summary struct {
	Dir  string
	Rows map[string]int
}

// Generator writes a referentially consistent set of the nine extracts.
type Generator struct {
	fs    afero.Fs
	dir   string
	cfg   Config
	faker *Faker
}

// NewGenerator creates a generator writing into dir.
func NewGenerator(fs afero.Fs, dir string, cfg Config) *Generator {
	f := NewFaker()
	if cfg.Seed != 0 {
		f = NewFakerWithSeed(cfg.Seed)
	}
	return &Generator{fs: fs, dir: dir, cfg: cfg, faker: f}
}

// dataset accumulates rows per source before writing.
type dataset map[string][][]string

// Generate builds every source in memory, then writes one CSV per source.
func (g *Generator) Generate(ctx context.Context) (*Summary, error) {
	if err := g.cfg.Validate(); err != nil {
		return nil, err
	}

	logging.Info().
		Int("orders", g.cfg.Orders).
		Uint64("seed", g.cfg.Seed).
		Float64("duplicate_ratio", g.cfg.DuplicateRatio).
		Str("dir", g.dir).
		Msg("Generating synthetic extracts")

	data := make(dataset)
	zips := g.generateGeolocation(data, max(10, g.cfg.Orders/5))
	sellers := g.generateSellers(data, zips, max(3, g.cfg.Orders/20))
	products := g.generateProducts(data, max(5, g.cfg.Orders/3))
	g.generateTranslations(data)
	g.generateOrders(data, zips, sellers, products)

	if err := g.fs.MkdirAll(g.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", g.dir, err)
	}

	summary := &Summary{Dir: g.dir, Rows: make(map[string]int, len(extract.Catalog))}
	for _, src := range extract.Catalog {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows := g.withDuplicates(data[src.Name])
		if err := g.writeCSV(src, rows); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", src.Name, err)
		}
		summary.Rows[src.Name] = len(rows)
	}
	return summary, nil
}

func (g *Generator) generateGeolocation(data dataset, count int) []string {
	seen := make(map[int]bool, count)
	zips := make([]string, 0, count)
	for len(zips) < count {
		zip := g.faker.Int(1000, 99990)
		if seen[zip] {
			continue
		}
		seen[zip] = true
		zips = append(zips, strconv.Itoa(zip))
	}

	for i, zip := range zips {
		// The last prefix has no coordinates, leaving customers there unmatched.
		if i == len(zips)-1 {
			break
		}
		place := Choose(g.faker, places)
		lat, lng := g.faker.Float64(-30, -5), g.faker.Float64(-55, -35)
		for range g.faker.Int(1, 5) {
			city := place.city
			if g.faker.Chance(g.cfg.NoiseRatio) {
				city = strings.ToUpper(city)
			}
			data[extract.Geolocation] = append(data[extract.Geolocation], []string{
				zip,
				formatCoord(lat + g.faker.Float64(-0.01, 0.01)),
				formatCoord(lng + g.faker.Float64(-0.01, 0.01)),
				city,
				place.state,
			})
		}
	}
	return zips
}

func (g *Generator) generateSellers(data dataset, zips []string, count int) []string {
	ids := make([]string, count)
	for i := range ids {
		ids[i] = g.faker.HexID()
		place := Choose(g.faker, places)
		data[extract.Sellers] = append(data[extract.Sellers], []string{
			ids[i], Choose(g.faker, zips), place.city, strings.ToUpper(place.state),
		})
	}
	return ids
}

func (g *Generator) generateProducts(data dataset, count int) []string {
	ids := make([]string, count)
	for i := range ids {
		ids[i] = g.faker.HexID()
		category := Choose(g.faker, categories).pt
		switch {
		case g.faker.Chance(g.cfg.NoiseRatio):
			category = ""
		case g.faker.Chance(g.cfg.NoiseRatio):
			category = untranslated
		}
		dims := func(lo, hi int) string {
			return g.faker.NullableString(strconv.Itoa(g.faker.Int(lo, hi)), g.cfg.NoiseRatio)
		}
		data[extract.Products] = append(data[extract.Products], []string{
			ids[i],
			category,
			strconv.Itoa(g.faker.Int(10, 70)),
			strconv.Itoa(g.faker.Int(50, 3000)),
			strconv.Itoa(g.faker.Int(1, 6)),
			dims(50, 30000),
			dims(10, 100),
			dims(2, 100),
			dims(10, 100),
		})
	}
	return ids
}

func (g *Generator) generateTranslations(data dataset) {
	for _, c := range categories {
		data[extract.CategoryTranslation] = append(data[extract.CategoryTranslation], []string{c.pt, c.en})
	}
}

func (g *Generator) generateOrders(data dataset, zips, sellers, products []string) {
	for range g.cfg.Orders {
		orderID := g.faker.HexID()
		customerID := g.faker.HexID()
		place := Choose(g.faker, places)

		city := place.city
		if g.faker.Chance(g.cfg.NoiseRatio) {
			city = "  " + city + " "
		}
		data[extract.Customers] = append(data[extract.Customers], []string{
			customerID, g.faker.HexID(), Choose(g.faker, zips), city, place.state,
		})

		status := ChooseWeighted(g.faker, orderStatuses, statusWeights)
		if g.faker.Chance(g.cfg.NoiseRatio) {
			status = "lost"
		}
		purchased := g.faker.DateRange(purchaseStart, purchaseEnd).Truncate(time.Second)
		approved := purchased.Add(time.Duration(g.faker.Int(10, 2880)) * time.Minute)
		estimated := purchased.AddDate(0, 0, g.faker.Int(10, 40))
		carrier, delivered := "", ""
		if status == "delivered" || status == "shipped" {
			carrier = formatTime(approved.Add(time.Duration(g.faker.Int(12, 96)) * time.Hour))
		}
		if status == "delivered" {
			delivered = formatTime(purchased.Add(time.Duration(g.faker.Int(48, 45*24)) * time.Hour))
		}
		data[extract.Orders] = append(data[extract.Orders], []string{
			orderID, customerID, status, formatTime(purchased), formatTime(approved),
			carrier, delivered, formatTime(estimated.Truncate(24 * time.Hour)),
		})

		var total float64
		items := g.faker.Int(1, 3)
		for item := 1; item <= items; item++ {
			price := g.faker.Price(5, 500)
			freight := g.faker.Price(5, 60)
			total += price + freight
			if g.faker.Chance(g.cfg.NoiseRatio) {
				price = -price
			}
			data[extract.OrderItems] = append(data[extract.OrderItems], []string{
				orderID, strconv.Itoa(item), Choose(g.faker, products), Choose(g.faker, sellers),
				formatTime(approved.AddDate(0, 0, 6)), formatMoney(price), formatMoney(freight),
			})
		}

		g.generatePayments(data, orderID, total)
		g.generateReviews(data, orderID, purchased)
	}
}

// generatePayments splits the order total over one or two payments.
func (g *Generator) generatePayments(data dataset, orderID string, total float64) {
	parts := []float64{total}
	if g.faker.Chance(0.1) {
		voucher := float64(int(total*g.faker.Float64(0.1, 0.5)*100)) / 100
		parts = []float64{total - voucher, voucher}
	}
	for i, value := range parts {
		ptype := ChooseWeighted(g.faker, paymentTypes, paymentWeights)
		if i > 0 {
			ptype = "voucher"
		}
		if g.faker.Chance(g.cfg.NoiseRatio) {
			ptype = "pix"
		}
		data[extract.OrderPayments] = append(data[extract.OrderPayments], []string{
			orderID, strconv.Itoa(i + 1), ptype, strconv.Itoa(g.faker.Int(1, 10)), formatMoney(value),
		})
	}
}

// generateReviews writes one review per order, occasionally a later second one.
func (g *Generator) generateReviews(data dataset, orderID string, purchased time.Time) {
	created := purchased.AddDate(0, 0, g.faker.Int(5, 40))
	count := 1
	if g.faker.Chance(0.05) {
		count = 2
	}
	for range count {
		answered := created.Add(time.Duration(g.faker.Int(1, 72)) * time.Hour)
		score := strconv.Itoa(ChooseWeighted(g.faker, []int{1, 2, 3, 4, 5}, []int{11, 3, 8, 19, 59}))
		data[extract.OrderReviews] = append(data[extract.OrderReviews], []string{
			g.faker.HexID(), orderID, score,
			g.faker.NullableString(g.faker.Word(), 0.8),
			g.faker.NullableString(g.faker.Sentence(8), 0.6),
			formatTime(created.Truncate(24 * time.Hour)), formatTime(answered),
		})
		created = created.AddDate(0, 0, g.faker.Int(1, 10))
	}
}

// withDuplicates appends verbatim copies of randomly chosen rows.
func (g *Generator) withDuplicates(rows [][]string) [][]string {
	n := int(float64(len(rows)) * g.cfg.DuplicateRatio)
	for range n {
		rows = append(rows, Choose(g.faker, rows))
	}
	return rows
}

func (g *Generator) writeCSV(src extract.Source, rows [][]string) error {
	path := filepath.Join(g.dir, src.File)
	f, err := g.fs.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(src.Columns); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}

	logging.Info().Str("source", src.Name).Str("path", path).Int("rows", len(rows)).Msg("Wrote source")
	return f.Close()
}

func formatTime(t time.Time) string {
	return t.Format(timestampLayout)
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
