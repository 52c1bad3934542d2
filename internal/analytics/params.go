package analytics

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the layout of date bounds in filter parameters.
const DateLayout = "2006-01-02"

// Params is an unparsed filter selection as it arrives from a query string
// or the command line. Empty fields are unset.
type Params struct {
	Hotels   []string `param:"hotel" validate:"dive,required"`
	Nights   string   `param:"nights" validate:"omitempty,number"`
	Persons  string   `param:"persons" validate:"omitempty,number"`
	PriceMin string   `param:"price_min" validate:"omitempty,numeric"`
	PriceMax string   `param:"price_max" validate:"omitempty,numeric"`
	DateFrom string   `param:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo   string   `param:"date_to" validate:"omitempty,datetime=2006-01-02"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("param")
	})
	return v
}

// IsZero reports whether no parameter was supplied.
func (p Params) IsZero() bool {
	return len(p.Hotels) == 0 && p.Nights == "" && p.Persons == "" &&
		p.PriceMin == "" && p.PriceMax == "" && p.DateFrom == "" && p.DateTo == ""
}

// Resolve validates p and turns it into a Selection over the given domains. With
// no parameters at all the default selection is returned. A bound supplied
// on only one side of a range is completed from the domain, and ranges that
// cover their whole domain are dropped.
func (p Params) Resolve(opts Options) (Selection, error) {
	if p.IsZero() {
		return DefaultSelection(opts), nil
	}
	if err := validate.Struct(p); err != nil {
		return Selection{}, paramError(err)
	}

	sel := Selection{Hotels: p.Hotels}
	var err error
	if sel.Nights, err = positive("nights", p.Nights); err != nil {
		return Selection{}, err
	}
	if sel.Persons, err = positive("persons", p.Persons); err != nil {
		return Selection{}, err
	}

	if p.PriceMin != "" || p.PriceMax != "" {
		r := opts.Price
		if p.PriceMin != "" {
			r.Min, _ = strconv.ParseFloat(p.PriceMin, 64)
		}
		if p.PriceMax != "" {
			r.Max, _ = strconv.ParseFloat(p.PriceMax, 64)
		}
		if r.Min < 0 || r.Max < 0 {
			return Selection{}, errors.New("price bounds must not be negative")
		}
		if r.Min > r.Max {
			return Selection{}, fmt.Errorf("price_min %g exceeds price_max %g", r.Min, r.Max)
		}
		sel.Price = &r
	}

	if p.DateFrom != "" || p.DateTo != "" {
		var r DateRange
		if opts.Dates != nil {
			r = *opts.Dates
		}
		if p.DateFrom != "" {
			r.From, _ = time.Parse(DateLayout, p.DateFrom)
		}
		if p.DateTo != "" {
			r.To, _ = time.Parse(DateLayout, p.DateTo)
		} else if opts.Dates == nil {
			r.To = r.From
		}
		if r.From.After(r.To) {
			return Selection{}, fmt.Errorf("date_from %s is after date_to %s", r.From.Format(DateLayout), r.To.Format(DateLayout))
		}
		sel.Dates = &r
	}

	return opts.Narrow(sel), nil
}

func positive(name, s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return nil, fmt.Errorf("%s must be a positive integer, got %q", name, s)
	}
	return &n, nil
}

func paramError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("invalid %s %q (%s)", fe.Field(), fmt.Sprint(fe.Value()), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
