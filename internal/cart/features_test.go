package cart_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cucumber/godog"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/notify"
	"github.com/fjod/go_cart/storefront/internal/persistence"
	"github.com/fjod/go_cart/storefront/internal/variant"
	"github.com/shopspring/decimal"
)

type cartTestContext struct {
	backend   *persistence.MemoryBackend
	store     *cart.Store
	products  map[int64]domain.Product
	lastAdd   cart.AddResult
	changeErr error
}

func (c *cartTestContext) reset() {
	if c.store != nil {
		c.store.Close()
	}
	c.backend = persistence.NewMemoryBackend()
	c.store = cart.New(c.backend, notify.NewEmitter())
	c.products = make(map[int64]domain.Product)
	c.lastAdd = cart.AddResult{}
	c.changeErr = nil
}

func (c *cartTestContext) product(id int64) (domain.Product, error) {
	p, ok := c.products[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %d not defined", id)
	}
	return p, nil
}

func (c *cartTestContext) aProductWithVariants(id int64, title string, table *godog.Table) error {
	p := domain.Product{ID: id, Title: title, Price: decimal.NewFromInt(10)}
	colors := map[string]bool{}
	sizes := map[string]bool{}

	for i, row := range table.Rows {
		if i == 0 {
			continue
		}
		variantID, err := strconv.ParseInt(row.Cells[0].Value, 10, 64)
		if err != nil {
			return err
		}
		color, size := row.Cells[1].Value, row.Cells[2].Value
		stock, err := strconv.Atoi(row.Cells[3].Value)
		if err != nil {
			return err
		}
		p.Variants = append(p.Variants, domain.ProductVariant{
			ID:    variantID,
			Stock: stock,
			Attributes: []domain.VariantAttribute{
				{Name: "Color", Value: color},
				{Name: "Size", Value: size},
			},
		})
		if !colors[color] {
			colors[color] = true
			p.Colors = append(p.Colors, color)
		}
		if !sizes[size] {
			sizes[size] = true
			p.Sizes = append(p.Sizes, size)
		}
	}

	if err := variant.ValidateVariants(p); err != nil {
		return err
	}
	c.products[id] = p
	return nil
}

func (c *cartTestContext) aProductWithoutVariantsAndStock(id int64, title string, stock int) error {
	c.products[id] = domain.Product{ID: id, Title: title, Price: decimal.NewFromInt(10), StockQuantity: domain.IntPtr(stock)}
	return nil
}

func (c *cartTestContext) aProductWithoutVariants(id int64, title string) error {
	c.products[id] = domain.Product{ID: id, Title: title, Price: decimal.NewFromInt(10), Colors: []string{"Red", "Blue"}}
	return nil
}

func (c *cartTestContext) iAddProductTimes(id int64, color, size string, times int) error {
	p, err := c.product(id)
	if err != nil {
		return err
	}
	for i := 0; i < times; i++ {
		c.lastAdd = c.store.AddToCart(context.Background(), p, domain.Selection{Color: color, Size: size}, nil)
	}
	return nil
}

func (c *cartTestContext) iAddProductWithoutOptions(id int64) error {
	return c.iAddProductTimes(id, "", "", 1)
}

func (c *cartTestContext) iChangeTheQuantityBy(id int64, color, size string, delta int) error {
	key := domain.NewLineKey(id, domain.Selection{Color: color, Size: size})
	c.changeErr = c.store.ChangeQuantity(context.Background(), key, delta).Err
	return nil
}

func (c *cartTestContext) iReloadTheCart() error {
	c.store.Close()
	c.store = cart.New(c.backend, notify.NewEmitter())
	return c.store.Load(context.Background())
}

func (c *cartTestContext) iClearTheCart() error {
	c.store.ClearCart(context.Background())
	return nil
}

func (c *cartTestContext) theCartHasLines(n int) error {
	if got := len(c.store.Items()); got != n {
		return fmt.Errorf("expected %d lines, got %d", n, got)
	}
	return nil
}

func (c *cartTestContext) theLineHasQuantity(id int64, color, size string, qty int) error {
	line, ok := c.store.Line(domain.NewLineKey(id, domain.Selection{Color: color, Size: size}))
	if !ok {
		return errors.New("line not found")
	}
	if line.Quantity != qty {
		return fmt.Errorf("expected quantity %d, got %d", qty, line.Quantity)
	}
	return nil
}

func (c *cartTestContext) theLastAddWasRejected() error {
	if c.lastAdd.Added {
		return errors.New("expected the add to be rejected")
	}
	if !errors.Is(c.lastAdd.Err, cart.ErrStockExceeded) {
		return fmt.Errorf("expected ErrStockExceeded, got %v", c.lastAdd.Err)
	}
	return nil
}

func (c *cartTestContext) theNotificationIsMentioning(kind, text string) error {
	n, ok := c.store.Notification()
	if !ok {
		return errors.New("no active notification")
	}
	if string(n.Type) != kind {
		return fmt.Errorf("expected %s notification, got %s", kind, n.Type)
	}
	if !strings.Contains(n.Message, text) {
		return fmt.Errorf("expected message to contain %q, got %q", text, n.Message)
	}
	return nil
}

func (c *cartTestContext) everyLineHasItemStock(id int64, stock int) error {
	found := false
	for _, item := range c.store.Items() {
		if item.ID != id {
			continue
		}
		found = true
		if got := c.store.GetItemStock(item); got != stock {
			return fmt.Errorf("expected item stock %d, got %d", stock, got)
		}
	}
	if !found {
		return fmt.Errorf("no lines for product %d", id)
	}
	return nil
}

func (c *cartTestContext) theStockForColorIs(color string, id int64, stock int) error {
	p, err := c.product(id)
	if err != nil {
		return err
	}
	if got := variant.StockForAxisValue(p, variant.ColorAxis, color, domain.Selection{}); got != stock {
		return fmt.Errorf("expected stock %d for %s, got %d", stock, color, got)
	}
	return nil
}

func (c *cartTestContext) theQuantityChangeIsRejected() error {
	if c.changeErr == nil {
		return errors.New("expected the quantity change to fail")
	}
	return nil
}

func (c *cartTestContext) nothingIsSaved() error {
	_, err := c.backend.Load(context.Background(), c.store.Key())
	if !errors.Is(err, persistence.ErrNotFound) {
		return fmt.Errorf("expected no saved cart, got %v", err)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &cartTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^a product (\d+) "([^"]*)" with variants:$`, tc.aProductWithVariants)
	ctx.Step(`^a product (\d+) "([^"]*)" without variants and stock (\d+)$`, tc.aProductWithoutVariantsAndStock)
	ctx.Step(`^a product (\d+) "([^"]*)" without variants$`, tc.aProductWithoutVariants)

	// When steps
	ctx.Step(`^I add product (\d+) with color "([^"]*)" and size "([^"]*)" (\d+) times$`, tc.iAddProductTimes)
	ctx.Step(`^I add product (\d+) without options$`, tc.iAddProductWithoutOptions)
	ctx.Step(`^I change the quantity of product (\d+) with color "([^"]*)" and size "([^"]*)" by (-?\d+)$`, tc.iChangeTheQuantityBy)
	ctx.Step(`^I reload the cart$`, tc.iReloadTheCart)
	ctx.Step(`^I clear the cart$`, tc.iClearTheCart)

	// Then steps
	ctx.Step(`^the cart has (\d+) lines?$`, tc.theCartHasLines)
	ctx.Step(`^the line for product (\d+) with color "([^"]*)" and size "([^"]*)" has quantity (\d+)$`, tc.theLineHasQuantity)
	ctx.Step(`^the last add was rejected$`, tc.theLastAddWasRejected)
	ctx.Step(`^the notification is a "([^"]*)" mentioning "([^"]*)"$`, tc.theNotificationIsMentioning)
	ctx.Step(`^every line for product (\d+) has item stock (\d+)$`, tc.everyLineHasItemStock)
	ctx.Step(`^the stock for color "([^"]*)" on product (\d+) is (\d+)$`, tc.theStockForColorIs)
	ctx.Step(`^the quantity change is rejected$`, tc.theQuantityChangeIsRejected)
	ctx.Step(`^nothing is saved for the cart$`, tc.nothingIsSaved)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../../features/cart.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
