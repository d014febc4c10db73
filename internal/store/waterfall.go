package store

// Deduction is the result of taking a sold quantity out of stock.
type Deduction struct {
	Godown      int
	Display     int
	FromGodown  int
	FromDisplay int
	// Shortfall is the part of the quantity neither counter could cover.
	Shortfall int
}

// Waterfall takes qty from godown first and the remainder from display.
// Counters never go below zero; what cannot be covered is the shortfall.
func Waterfall(godown, display, qty int) Deduction {
	if qty <= 0 {
		return Deduction{Godown: godown, Display: display}
	}
	if godown < 0 {
		godown = 0
	}
	if display < 0 {
		display = 0
	}

	if godown >= qty {
		return Deduction{Godown: godown - qty, Display: display, FromGodown: qty}
	}

	d := Deduction{FromGodown: godown}
	rest := qty - godown
	if display >= rest {
		d.Display = display - rest
		d.FromDisplay = rest
		return d
	}
	d.FromDisplay = display
	d.Shortfall = rest - display
	return d
}
