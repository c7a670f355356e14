package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNormalizeString(t *testing.T) {
	tc := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "basic", input: "Blue Mug", want: "blue mug"},
		{name: "extra whitespace", input: "  Blue \t  Mug\n ", want: "blue mug"},
		{name: "mixed case", input: "BlUe MuG", want: "blue mug"},
		{name: "compatibility forms", input: "Ｂｌｕｅ　Ｍｕｇ", want: "blue mug"},
		{name: "ligature", input: "ﬁne Tea", want: "fine tea"},
		{name: "only whitespace", input: " \t ", want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeString(tt.input); got != tt.want {
				t.Errorf("NormalizeString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}

	t.Run("idempotent", func(t *testing.T) {
		once := NormalizeString("  Ｒｅｄ   Shirt ")
		if twice := NormalizeString(once); twice != once {
			t.Errorf("normalizing twice changed %q to %q", once, twice)
		}
	})
}

func TestNormalizePrice(t *testing.T) {
	tc := []struct {
		input string
		want  string
	}{
		{"6,5", "6.50"},
		{"12,99", "12.99"},
		{"0,01", "0.01"},
		{"6.5", "6.50"},
		{"100.00", "100.00"},
		{"1.234,56", "1234.56"},
		{"1.234.567,89", "1234567.89"},
		{"1,234.56", "1234.56"},
		{"10,000,000.00", "10000000.00"},
		{"12 €", "12.00"},
		{"€ 12.50", "12.50"},
		{"EUR 12.50", "12.50"},
		{"eur 12.50", "12.50"},
		{"  12,50 EUR  ", "12.50"},
		{"12, 50", "12.50"},
		{"1'234.50", "1234.50"},
		{"0,001", "0.00"},
		{"10", "10.00"},
		{"0", "0.00"},
	}

	for _, tt := range tc {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizePrice(tt.input)
			if err != nil {
				t.Fatalf("NormalizePrice(%q) returned error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("NormalizePrice(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}

	t.Run("invalid", func(t *testing.T) {
		for _, input := range []string{"", "abc", "not a price", "€€€", "EUR", "-5"} {
			if _, err := NormalizePrice(input); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("NormalizePrice(%q) error = %v, want ErrInvalidInput", input, err)
			}
		}
	})
}

func TestPricesEqual(t *testing.T) {
	tc := []struct {
		a, b string
		want bool
	}{
		{"12.50", "12.5", true},
		{"12,50", "12.5", true},
		{"12", "12.00", true},
		{"12.51", "12.5", false},
		{"", "", false},
		{"abc", "abc", false},
	}

	for _, tt := range tc {
		if got := PricesEqual(tt.a, tt.b); got != tt.want {
			t.Errorf("PricesEqual(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestColumnLetterToIndex(t *testing.T) {
	tc := map[string]int{"A": 0, "b": 1, "Z": 25, "AA": 26, "AB": 27, "AZ": 51, "BA": 52, "": -1, "A1": -1}
	for label, want := range tc {
		if got := ColumnLetterToIndex(label); got != want {
			t.Errorf("ColumnLetterToIndex(%q) = %d, want %d", label, got, want)
		}
	}

	if !IsColumnLetter("AB") || IsColumnLetter("Price") || IsColumnLetter("ab") || IsColumnLetter("ABCD") {
		t.Error("IsColumnLetter misclassified a label")
	}
}

func TestFormatDuration(t *testing.T) {
	tc := []struct {
		d    time.Duration
		want string
	}{
		{850 * time.Millisecond, "850ms"},
		{12400 * time.Millisecond, "12.4s"},
		{3*time.Minute + 5*time.Second, "3m05s"},
	}
	for _, tt := range tc {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%s) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "stocksync.log")
	logger, closer, err := NewFileLogger(path, 1, 1)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger.Info("sync finished", "success", 3)
	if err := closer.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected log output in file")
	}

	if _, _, err := NewFileLogger("", 1, 1); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for empty path, got %v", err)
	}
}
