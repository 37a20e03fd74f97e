package cli

import (
	"github.com/spf13/pflag"
)

// ServeFlags holds the CLI flags for the serve command.
type ServeFlags struct {
	Port    int
	Verbose bool
}

// Bind registers the serve flags on fs.
func (f *ServeFlags) Bind(fs *pflag.FlagSet) {
	fs.IntVar(&f.Port, "port", 0, "Port to listen on (default from config)")
	fs.BoolVarP(&f.Verbose, "verbose", "v", false, "Verbose output")
}

// MatchFlags holds the CLI flags for the offline match command.
type MatchFlags struct {
	LedgerPath      string
	BankPath        string
	OutputPath      string
	VendorThreshold float64
	DateWindowDays  int
	NoProgress      bool
	Verbose         bool
}

// Bind registers the match flags on fs. Threshold flags left unset keep the config values.
func (f *MatchFlags) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.LedgerPath, "ledger", "", "JSON file of ledger transactions (required)")
	fs.StringVar(&f.BankPath, "bank", "", "JSON file of bank transactions (required)")
	fs.StringVarP(&f.OutputPath, "output", "o", "", "Write results to this file instead of stdout")
	fs.Float64Var(&f.VendorThreshold, "vendor-threshold", -1, "Override the vendor similarity threshold")
	fs.IntVar(&f.DateWindowDays, "date-window", -1, "Override the date window in days")
	fs.BoolVar(&f.NoProgress, "no-progress", false, "Hide the progress bar")
	fs.BoolVarP(&f.Verbose, "verbose", "v", false, "Verbose output")
}
