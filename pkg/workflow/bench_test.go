package workflow

import (
	"context"
	"testing"
)

func BenchmarkSubstitute(b *testing.B) {
	store := NewStore(
		map[string]Value{"baseUrl": String("https://api.example.com")},
		map[string]Value{"userId": Number(42), "token": String("abc.def.ghi")},
	)
	sub := NewSubstitutor(store, NewGenerators(1))
	tmpl := "{{baseUrl}}/users/{{userId}}/orders?token={{token}}&trace={{$uuid}}"

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := sub.Substitute(tmpl); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkExtract(b *testing.B) {
	doc, err := ParseJSON([]byte(`{"data":{"users":[{"id":1,"email":"a@x.io"},{"id":2,"email":"b@x.io"}]},"meta":{"total":2}}`))
	if err != nil {
		b.Fatal(err)
	}
	paths := []string{"$.data.users[1].email", "$.meta.total", "$.data.users[*].id"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, p := range paths {
			if _, err := Extract(doc, p); err != nil {
				b.Fatal(err)
			}
		}
	}
}

func BenchmarkMatcherMatch(b *testing.B) {
	matchers := []Matcher{
		{Kind: MatchEquals, Expected: "200"},
		{Kind: MatchLessThan, Expected: "500"},
		{Kind: MatchRegex, Expected: `^\d+$`},
		{Kind: MatchContains, Expected: "0"},
	}
	actual := Number(200)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, m := range matchers {
			m.Match(actual)
		}
	}
}

func BenchmarkExecutorRun(b *testing.B) {
	d := DispatcherFunc(func(context.Context, *RequestSpec) (*ResponseSpec, error) {
		return &ResponseSpec{Status: 200, Body: `{"id":"u-1","token":"t"}`}, nil
	})
	chain := &Chain{
		Name: "bench",
		Steps: []Step{
			{
				Name:       "login",
				Request:    RequestTemplate{Method: "POST", URL: "{{baseUrl}}/login"},
				Extract:    []ExtractRule{{Name: "token", Path: "$.token"}},
				Assertions: []Assertion{{Path: "status", Matcher: Matcher{Kind: MatchEquals, Expected: "200"}}},
			},
			{
				Name:       "profile",
				Request:    RequestTemplate{URL: "{{baseUrl}}/me", Headers: map[string]string{"Authorization": "Bearer {{token}}"}},
				Assertions: []Assertion{{Path: "$.id", Matcher: Matcher{Kind: MatchStartsWith, Expected: "u-"}}},
			},
		},
	}
	env := map[string]Value{"baseUrl": String("https://api.test")}
	exec := NewExecutor(d)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := exec.Run(ctx, chain, env); err != nil {
			b.Fatal(err)
		}
	}
}
