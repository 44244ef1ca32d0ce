package pricing

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/example/digital-storefront/internal/domain/cart"
)

// Method is a payment channel offered at checkout.
type Method struct {
	Code  string  `json:"code"`
	Name  string  `json:"name"`
	Group string  `json:"group"`
	Fee   FeeRule `json:"fee"`
}

// Methods is an immutable registry of payment methods keyed by code.
type Methods struct {
	byCode map[string]Method
	order  []string
}

func NewMethods(methods ...Method) (*Methods, error) {
	m := &Methods{byCode: make(map[string]Method, len(methods))}
	for _, method := range methods {
		code := strings.ToUpper(strings.TrimSpace(method.Code))
		if code == "" {
			return nil, fmt.Errorf("%w: empty code", ErrInvalidMethod)
		}
		if _, dup := m.byCode[code]; dup {
			return nil, fmt.Errorf("%w: duplicate code %s", ErrInvalidMethod, code)
		}
		if method.Fee.Flat < 0 || method.Fee.Percent.IsNegative() {
			return nil, fmt.Errorf("%w: negative fee for %s", ErrInvalidMethod, code)
		}
		method.Code = code
		m.byCode[code] = method
		m.order = append(m.order, code)
	}
	return m, nil
}

// DefaultMethods mirrors the fee table of the sandbox gateway account.
func DefaultMethods() *Methods {
	m, err := NewMethods(
		Method{Code: "QRIS", Name: "QRIS", Group: "E-Wallet", Fee: FeeRule{Flat: 750, Percent: decimal.RequireFromString("0.7")}},
		Method{Code: "BCA_VA", Name: "BCA Virtual Account", Group: "Virtual Account", Fee: Flat(5500)},
		Method{Code: "BRI_VA", Name: "BRI Virtual Account", Group: "Virtual Account", Fee: Flat(4250)},
		Method{Code: "MANDIRI_VA", Name: "Mandiri Virtual Account", Group: "Virtual Account", Fee: Flat(4250)},
		Method{Code: "OVO", Name: "OVO", Group: "E-Wallet", Fee: FeeRule{Percent: decimal.RequireFromString("3")}},
		Method{Code: "DANA", Name: "DANA", Group: "E-Wallet", Fee: FeeRule{Percent: decimal.RequireFromString("3")}},
	)
	if err != nil {
		panic(err)
	}
	return m
}

type methodsFile struct {
	Methods []struct {
		Code    string `yaml:"code"`
		Name    string `yaml:"name"`
		Group   string `yaml:"group"`
		Flat    int64  `yaml:"flat"`
		Percent string `yaml:"percent"`
	} `yaml:"methods"`
}

// LoadMethodsFile reads a YAML method table.
func LoadMethodsFile(path string) (*Methods, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payment methods: %w", err)
	}
	return ParseMethods(data)
}

func ParseMethods(data []byte) (*Methods, error) {
	var file methodsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse payment methods: %w", err)
	}

	methods := make([]Method, 0, len(file.Methods))
	for _, raw := range file.Methods {
		rule := FeeRule{Flat: raw.Flat}
		if raw.Percent != "" {
			pct, err := decimal.NewFromString(raw.Percent)
			if err != nil {
				return nil, fmt.Errorf("method %s: parse percent: %w", raw.Code, err)
			}
			rule.Percent = pct
		}
		methods = append(methods, Method{Code: raw.Code, Name: raw.Name, Group: raw.Group, Fee: rule})
	}
	return NewMethods(methods...)
}

// Get looks a method up by code, case-insensitively.
func (m *Methods) Get(code string) (Method, error) {
	method, ok := m.byCode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Method{}, fmt.Errorf("%w: %q", ErrInvalidMethod, code)
	}
	return method, nil
}

// List returns methods in configuration order.
func (m *Methods) List() []Method {
	out := make([]Method, 0, len(m.order))
	for _, code := range m.order {
		out = append(out, m.byCode[code])
	}
	return out
}

// Groups returns the distinct method groups, sorted.
func (m *Methods) Groups() []string {
	seen := make(map[string]struct{})
	for _, method := range m.byCode {
		seen[method.Group] = struct{}{}
	}
	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// Quote prices items with the fee rule of method code.
func (m *Methods) Quote(items []cart.LineItem, code string) (Quote, Method, error) {
	method, err := m.Get(code)
	if err != nil {
		return Quote{}, Method{}, err
	}
	return ComputeTotal(items, method.Fee), method, nil
}
