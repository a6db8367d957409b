package menu

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nanzhong/nsequote/market"
)

// Tracker is the subset of market.Tracker the menu drives.
type Tracker interface {
	LivePrice(ctx context.Context, symbol string) (market.Quote, bool)
	LastTradedPrice(ctx context.Context, symbol string) (market.Quote, bool)
}

const (
	choiceLive       = "1"
	choiceLastTraded = "2"
	choiceExit       = "3"

	rule = "=================================================="
)

// Menu is the interactive price lookup loop.
type Menu struct {
	tracker Tracker
	in      *bufio.Scanner
	out     io.Writer
}

func New(tracker Tracker, in io.Reader, out io.Writer) *Menu {
	return &Menu{
		tracker: tracker,
		in:      bufio.NewScanner(in),
		out:     out,
	}
}

// Run shows the menu and dispatches choices until the operator exits, input
// ends or ctx is cancelled.
func (m *Menu) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		m.printMenu()
		choice, ok := m.prompt("Enter your choice (1-3): ")
		if !ok {
			return m.in.Err()
		}

		switch choice {
		case choiceLive:
			symbol, ok := m.promptSymbol()
			if !ok {
				return m.in.Err()
			}
			if q, ok := m.tracker.LivePrice(ctx, symbol); ok {
				fmt.Fprintf(m.out, "Live price of %s: %s\n", symbol, q)
			} else {
				fmt.Fprintln(m.out, "Failed to fetch live price. Please try again later.")
			}
		case choiceLastTraded:
			symbol, ok := m.promptSymbol()
			if !ok {
				return m.in.Err()
			}
			if q, ok := m.tracker.LastTradedPrice(ctx, symbol); ok {
				fmt.Fprintf(m.out, "Last traded price of %s: %s\n", symbol, q)
			} else {
				fmt.Fprintln(m.out, "Failed to fetch last traded price. Please try again later.")
			}
		case choiceExit:
			fmt.Fprintln(m.out, "Exiting... Goodbye!")
			return nil
		default:
			fmt.Fprintln(m.out, "Invalid choice. Please enter 1, 2, or 3.")
		}
	}
}

func (m *Menu) printMenu() {
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, rule)
	fmt.Fprintln(m.out, strings.Repeat(" ", 15)+"NSE STOCK PRICE TRACKER")
	fmt.Fprintln(m.out, rule)
	fmt.Fprintln(m.out, "1. Get Live Price (Market Hours)")
	fmt.Fprintln(m.out, "2. Get Last Traded Price")
	fmt.Fprintln(m.out, "3. Exit")
	fmt.Fprintln(m.out, rule)
}

func (m *Menu) prompt(text string) (string, bool) {
	fmt.Fprint(m.out, text)
	if !m.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(m.in.Text()), true
}

func (m *Menu) promptSymbol() (string, bool) {
	symbol, ok := m.prompt("Enter NSE stock symbol (e.g., RELIANCE): ")
	return strings.ToUpper(symbol), ok
}
