// Package terminal is the line-oriented front end of the point of sale. It
// parses commands, drives the session controller and prints views and
// documents.
package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"shop-pos/internal/apperr"
	"shop-pos/internal/pos/catalog"
	"shop-pos/internal/pos/controller"
	"shop-pos/internal/pos/document"
	"shop-pos/internal/pos/inventory"
	"shop-pos/internal/pos/lookup"
	"shop-pos/internal/pos/session"
	"shop-pos/internal/pos/view"
	"shop-pos/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Directory answers the store queries that do not touch the active order.
type Directory interface {
	SearchShops(ctx context.Context, name string) ([]catalog.Shop, error)
	ListOrders(ctx context.Context, shopID string) ([]session.Summary, error)
	ActiveBucket(ctx context.Context, shopID string) (session.Order, bool, error)
}

// Terminal runs one operator's command loop.
type Terminal struct {
	ctrl      *controller.Controller
	inventory *inventory.Cache
	lookup    *lookup.Lookup
	directory Directory
	out       io.Writer
	logger    *zap.Logger

	selected []catalog.Product
	lastSold *session.Order
}

// New creates a terminal. Every committed view is printed to out as a status
// line.
func New(ctrl *controller.Controller, inv *inventory.Cache, lk *lookup.Lookup, dir Directory, out io.Writer) *Terminal {
	t := &Terminal{
		ctrl:      ctrl,
		inventory: inv,
		lookup:    lk,
		directory: dir,
		out:       out,
		logger:    util.GetLogger(),
	}
	ctrl.Subscribe(t.renderView)
	return t
}

const usage = `commands:
  shops <name>             search shops
  shop <id>                select a shop and load its inventory
  inventory                reload the inventory of the shop
  filter <term>            filter the loaded inventory
  scan <code> [qty]        look a code up and add it to the basket
  new <client name>        open a basket
  add <code|id> [qty]      add an inventory item to the basket
  qty <code|id> <delta>    change a line quantity
  rm <code|id>             remove a line
  pi <discount%>           convert the basket to a proforma invoice
  finalize                 sell the order
  delete                   delete the draft basket
  exit                     leave the basket without deleting it
  orders                   list the orders of the shop
  resume [order id]        reopen an order, the latest draft by default
  print                    print the proforma, or the invoice of the last sale
  labels [term]            print item code labels
  help                     show this text
  quit                     leave the terminal
`

// Run reads commands from in until quit or end of input. Command failures are
// printed and the loop continues.
func (t *Terminal) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	t.prompt()
	for scanner.Scan() {
		quit, err := t.Exec(ctx, scanner.Text())
		if err != nil {
			t.renderError(err)
		}
		if quit {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.prompt()
	}
	return scanner.Err()
}

// Exec runs a single command line.
func (t *Terminal) Exec(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	t.logger.Debug("Terminal command", zap.String("command", cmd), zap.Int("args", len(args)))

	switch cmd {
	case "quit", "q":
		return true, nil
	case "help", "?":
		fmt.Fprint(t.out, usage)
		return false, nil
	case "shops":
		return false, t.searchShops(ctx, strings.Join(args, " "))
	case "shop":
		return false, t.selectShop(ctx, args)
	case "inventory", "inv":
		return false, t.reloadInventory(ctx)
	case "filter":
		t.filter(strings.Join(args, " "))
		return false, nil
	case "scan":
		return false, t.scan(ctx, args)
	case "new":
		return false, t.create(ctx, strings.Join(args, " "))
	case "add":
		return false, t.add(ctx, args)
	case "qty":
		return false, t.changeQty(ctx, args)
	case "rm":
		return false, t.remove(ctx, args)
	case "pi":
		return false, t.convert(ctx, args)
	case "finalize":
		return false, t.finalize(ctx)
	case "delete":
		_, err := t.ctrl.DeleteDraft(ctx)
		return false, err
	case "exit":
		_, err := t.ctrl.Exit(ctx)
		return false, err
	case "orders":
		return false, t.listOrders(ctx)
	case "resume":
		return false, t.resume(ctx, args)
	case "print":
		return false, t.print()
	case "labels":
		t.labels(strings.Join(args, " "))
		return false, nil
	}
	return false, apperr.Newf(apperr.CodeValidation, "unknown command %q, type help", cmd)
}

func (t *Terminal) prompt() {
	fmt.Fprint(t.out, "> ")
}

func (t *Terminal) renderError(err error) {
	msg := err.Error()
	if e := apperr.As(err); e != nil {
		msg = e.Message()
		if e.Retryable() {
			msg += " (try again)"
		}
	}
	fmt.Fprintf(t.out, "error: %s\n", msg)
}

func (t *Terminal) renderView(v view.View) {
	if !v.BannerVisible {
		fmt.Fprintf(t.out, "[%s] no active basket\n", v.NavActive)
		return
	}
	fmt.Fprintf(t.out, "[%s] %s | %d items | %s\n", v.NavActive, v.BannerText, v.ItemCount, v.GrandTotal.StringFixed(2))
	for _, l := range v.Lines {
		fmt.Fprintf(t.out, "    %-12s x%-3d %10s\n", l.ItemCode, l.Quantity, l.Amount.StringFixed(2))
	}
}

func (t *Terminal) shopID() (string, error) {
	id := t.ctrl.Session().ShopID
	if id == "" {
		return "", apperr.StateViolation("select a shop first")
	}
	return id, nil
}

func (t *Terminal) searchShops(ctx context.Context, name string) error {
	t.ctrl.Navigate(session.ScreenSearch)
	shops, err := t.directory.SearchShops(ctx, name)
	if err != nil {
		return err
	}
	if len(shops) == 0 {
		fmt.Fprintln(t.out, "no shops found")
		return nil
	}
	w := tabwriter.NewWriter(t.out, 0, 4, 2, ' ', 0)
	for _, s := range shops {
		fmt.Fprintf(w, "%s\t%s\n", s.ID, s.Name)
	}
	return w.Flush()
}

func (t *Terminal) selectShop(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return apperr.Validation("usage: shop <id>")
	}
	t.ctrl.SelectShop(args[0])
	return t.reloadInventory(ctx)
}

func (t *Terminal) reloadInventory(ctx context.Context) error {
	shopID, err := t.shopID()
	if err != nil {
		return err
	}
	t.ctrl.Navigate(session.ScreenInventory)
	items, err := t.inventory.Load(ctx, shopID)
	if err != nil {
		return err
	}
	t.selected = items
	t.printProducts(items)
	return nil
}

func (t *Terminal) filter(term string) {
	t.ctrl.Navigate(session.ScreenInventory)
	t.selected = t.inventory.Filter(term)
	t.printProducts(t.selected)
}

func (t *Terminal) printProducts(items []catalog.Product) {
	w := tabwriter.NewWriter(t.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tCATEGORY\tVENDOR\tPRICE\tDISPLAY\tGODOWN")
	for _, p := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n",
			p.ItemCode, p.CategoryName, p.VendorName, p.SellingPrice.StringFixed(2), p.QtyDisplay, p.QtyGodown)
	}
	_ = w.Flush()
	fmt.Fprintf(t.out, "%d items\n", len(items))
}

func parseQty(args []string, at int) (int, error) {
	if len(args) <= at {
		return 1, nil
	}
	n, err := strconv.Atoi(args[at])
	if err != nil {
		return 0, apperr.Newf(apperr.CodeValidation, "invalid quantity %q", args[at])
	}
	return n, nil
}

func (t *Terminal) scan(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return apperr.Validation("usage: scan <code> [qty]")
	}
	qty, err := parseQty(args, 1)
	if err != nil {
		return err
	}
	t.ctrl.Navigate(session.ScreenScan)
	product, err := t.lookup.ByCode(ctx, args[0])
	if err != nil {
		return err
	}
	_, err = t.ctrl.AddItem(ctx, product, qty)
	return err
}

func (t *Terminal) create(ctx context.Context, clientName string) error {
	t.ctrl.Navigate(session.ScreenBasket)
	_, err := t.ctrl.Create(ctx, clientName)
	return err
}

// resolveProduct finds a loaded inventory item by id or item code.
func (t *Terminal) resolveProduct(ref string) (catalog.Product, bool) {
	if p, ok := t.inventory.Find(ref); ok {
		return p, true
	}
	for _, p := range t.inventory.All() {
		if strings.EqualFold(p.ItemCode, ref) {
			return p, true
		}
	}
	return catalog.Product{}, false
}

// resolveLine finds a line of the active order by product id or item code.
func (t *Terminal) resolveLine(ref string) (string, error) {
	active := t.ctrl.Session().Active
	if active == nil {
		return "", apperr.StateViolation("no active basket")
	}
	for _, li := range active.Items {
		if li.ProductID == ref || strings.EqualFold(li.ItemCode, ref) {
			return li.ProductID, nil
		}
	}
	return ref, nil
}

func (t *Terminal) add(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return apperr.Validation("usage: add <code|id> [qty]")
	}
	qty, err := parseQty(args, 1)
	if err != nil {
		return err
	}
	product, ok := t.resolveProduct(args[0])
	if !ok {
		return apperr.Newf(apperr.CodeNotFound, "%s is not in the loaded inventory", args[0])
	}
	_, err = t.ctrl.AddItem(ctx, product, qty)
	return err
}

func (t *Terminal) changeQty(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return apperr.Validation("usage: qty <code|id> <delta>")
	}
	delta, err := strconv.Atoi(args[1])
	if err != nil {
		return apperr.Newf(apperr.CodeValidation, "invalid quantity change %q", args[1])
	}
	productID, err := t.resolveLine(args[0])
	if err != nil {
		return err
	}
	_, err = t.ctrl.UpdateQty(ctx, productID, delta)
	return err
}

func (t *Terminal) remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return apperr.Validation("usage: rm <code|id>")
	}
	productID, err := t.resolveLine(args[0])
	if err != nil {
		return err
	}
	_, err = t.ctrl.RemoveItem(ctx, productID)
	return err
}

func (t *Terminal) convert(ctx context.Context, args []string) error {
	raw := "0"
	if len(args) > 0 {
		raw = strings.TrimSuffix(args[0], "%")
	}
	discount, err := decimal.NewFromString(raw)
	if err != nil {
		return apperr.Newf(apperr.CodeValidation, "invalid discount %q", raw)
	}
	out, err := t.ctrl.ConvertToPI(ctx, discount)
	if err != nil {
		return err
	}
	if out.Order != nil {
		return t.printDocument(*out.Order, document.KindProforma)
	}
	return nil
}

func (t *Terminal) finalize(ctx context.Context) error {
	out, err := t.ctrl.Finalize(ctx)
	if err != nil {
		return err
	}
	if out.Order == nil {
		return nil
	}
	sold := out.Order.Clone()
	t.lastSold = &sold
	return t.printDocument(sold, document.KindInvoice)
}

func (t *Terminal) listOrders(ctx context.Context) error {
	shopID, err := t.shopID()
	if err != nil {
		return err
	}
	t.ctrl.Navigate(session.ScreenOrders)
	orders, err := t.directory.ListOrders(ctx, shopID)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(t.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ORDER\tCLIENT\tSTATUS\tDISCOUNT\tTOTAL\tCREATED")
	for _, o := range orders {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s%%\t%s\t%s\n",
			o.ID, o.ClientName, o.Status, o.DiscountPercent.String(), o.FinalTotal.StringFixed(2),
			o.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func (t *Terminal) resume(ctx context.Context, args []string) error {
	var orderID string
	if len(args) > 0 {
		orderID = args[0]
	} else {
		shopID, err := t.shopID()
		if err != nil {
			return err
		}
		draft, ok, err := t.directory.ActiveBucket(ctx, shopID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("no draft basket to resume")
		}
		orderID = draft.ID
	}
	t.ctrl.Navigate(session.ScreenBasket)
	_, err := t.ctrl.Resume(ctx, orderID)
	return err
}

func (t *Terminal) print() error {
	if active := t.ctrl.Session().Active; active != nil {
		return t.printDocument(*active, document.KindProforma)
	}
	if t.lastSold != nil {
		return t.printDocument(*t.lastSold, document.KindInvoice)
	}
	return apperr.StateViolation("nothing to print")
}

func (t *Terminal) printDocument(snap session.Order, kind document.Kind) error {
	doc, err := document.Render(snap, kind)
	if err != nil {
		return err
	}
	fmt.Fprint(t.out, doc.Text())
	return nil
}

func (t *Terminal) labels(term string) {
	items := t.selected
	if strings.TrimSpace(term) != "" {
		items = t.inventory.Filter(term)
	}
	fmt.Fprint(t.out, document.Labels(items))
}
