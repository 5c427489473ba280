package workflow

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
)

// Generators resolves the built-in dynamic variables:
//
//	{{$uuid}}          random UUID v4
//	{{$timestamp}}     unix seconds
//	{{$isoTimestamp}}  RFC 3339 UTC time
//	{{$randomInt}}     integer in [0, 1000)
//	{{$faker.<kind>}}  fake data, e.g. $faker.email
//
// Generators is safe for concurrent use.
type Generators struct {
	mu    sync.Mutex
	faker *gofakeit.Faker
	now   func() time.Time
}

// NewGenerators creates a generator set. A zero seed picks a random seed.
func NewGenerators(seed uint64) *Generators {
	return &Generators{
		faker: gofakeit.New(seed),
		now:   time.Now,
	}
}

// WithNowFunc overrides the clock used by the timestamp generators.
func (g *Generators) WithNowFunc(fn func() time.Time) *Generators {
	g.now = fn
	return g
}

// Resolve implements DynamicResolver.
func (g *Generators) Resolve(name string) (Value, bool) {
	switch name {
	case "$uuid", "$guid":
		return String(uuid.NewString()), true
	case "$timestamp":
		return Int(g.now().Unix()), true
	case "$isoTimestamp":
		return String(g.now().UTC().Format(time.RFC3339)), true
	case "$randomInt":
		g.mu.Lock()
		defer g.mu.Unlock()
		return Int(int64(g.faker.Number(0, 999))), true
	}

	kind, ok := strings.CutPrefix(name, "$faker.")
	if !ok {
		return Value{}, false
	}
	gen, ok := fakerKinds[kind]
	if !ok {
		return Value{}, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return gen(g.faker), true
}

// FakerKinds returns the supported $faker.<kind> names, sorted.
func FakerKinds() []string {
	kinds := make([]string, 0, len(fakerKinds))
	for k := range fakerKinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

var fakerKinds = map[string]func(*gofakeit.Faker) Value{
	"name":      func(f *gofakeit.Faker) Value { return String(f.Name()) },
	"firstName": func(f *gofakeit.Faker) Value { return String(f.FirstName()) },
	"lastName":  func(f *gofakeit.Faker) Value { return String(f.LastName()) },
	"email":     func(f *gofakeit.Faker) Value { return String(f.Email()) },
	"username":  func(f *gofakeit.Faker) Value { return String(f.Username()) },
	"phone":     func(f *gofakeit.Faker) Value { return String(f.Phone()) },
	"company":   func(f *gofakeit.Faker) Value { return String(f.Company()) },
	"city":      func(f *gofakeit.Faker) Value { return String(f.City()) },
	"country":   func(f *gofakeit.Faker) Value { return String(f.Country()) },
	"street":    func(f *gofakeit.Faker) Value { return String(f.Street()) },
	"zip":       func(f *gofakeit.Faker) Value { return String(f.Zip()) },
	"domain":    func(f *gofakeit.Faker) Value { return String(f.DomainName()) },
	"url":       func(f *gofakeit.Faker) Value { return String(f.URL()) },
	"ipv4":      func(f *gofakeit.Faker) Value { return String(f.IPv4Address()) },
	"word":      func(f *gofakeit.Faker) Value { return String(f.Word()) },
	"sentence":  func(f *gofakeit.Faker) Value { return String(f.Sentence(5)) },
	"bool":      func(f *gofakeit.Faker) Value { return Bool(f.Bool()) },
	"price":     func(f *gofakeit.Faker) Value { return Number(f.Price(1, 1000)) },
	"number":    func(f *gofakeit.Faker) Value { return Int(int64(f.Number(1, 100000))) },
}
