package portability

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/reqchain/pkg/auth"
	"github.com/getmockd/reqchain/pkg/config"
)

const usersOpenAPI = `openapi: 3.0.3
info:
  title: Users API
  version: "1.0"
servers:
  - url: https://api.example.com/v1/
security:
  - bearerAuth: []
paths:
  /users/{id}:
    parameters:
      - name: id
        in: path
        required: true
        schema: {type: integer}
        example: 42
    get:
      operationId: getUser
      responses:
        "200": {description: ok}
        "404": {description: missing}
    delete:
      responses:
        "204": {description: deleted}
  /users:
    get:
      operationId: listUsers
      parameters:
        - name: limit
          in: query
          required: true
          schema: {type: integer, minimum: 5}
        - name: cursor
          in: query
          schema: {type: string}
      responses:
        "200": {description: ok}
    post:
      operationId: createUser
      summary: Create a user
      requestBody:
        content:
          application/json:
            schema:
              type: object
              properties:
                id: {type: string, readOnly: true}
                email: {type: string, format: email}
                name: {type: string}
                age: {type: integer, minimum: 18}
      responses:
        "201": {description: created}
        "400": {description: bad}
components:
  securitySchemes:
    bearerAuth:
      type: http
      scheme: bearer
`

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		filename string
		want     Format
	}{
		{"openapi yaml", usersOpenAPI, "api.yaml", FormatOpenAPI},
		{"swagger json", `{"swagger": "2.0", "paths": {}}`, "api.json", FormatOpenAPI},
		{"postman", `{"info": {"name": "x"}, "item": []}`, "c.json", FormatPostman},
		{"har by content", `{"log": {"version": "1.2", "entries": []}}`, "x.json", FormatHAR},
		{"har by extension", `{}`, "session.har", FormatHAR},
		{"curl", "curl https://example.com", "", FormatCURL},
		{"curl with tab", "  curl\thttps://example.com", "cmd.txt", FormatCURL},
		{"empty", "   ", "x.json", FormatUnknown},
		{"unknown json", `{"hello": "world"}`, "x.json", FormatUnknown},
		{"garbage", "{not json", "x.json", FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat([]byte(tt.data), tt.filename))
		})
	}
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatOpenAPI, ParseFormat("Swagger"))
	assert.Equal(t, FormatOpenAPI, ParseFormat("oas"))
	assert.Equal(t, FormatCURL, ParseFormat(" curl "))
	assert.Equal(t, FormatUnknown, ParseFormat("wiremock"))
	assert.Equal(t, "unknown", FormatUnknown.String())
}

func TestImport_OpenAPI(t *testing.T) {
	doc, err := Import([]byte(usersOpenAPI), "users.yaml", FormatUnknown, &Options{Contract: "users.yaml"})
	require.NoError(t, err)

	assert.Equal(t, "Users API", doc.Name)
	assert.Equal(t, "users.yaml", doc.Contract)
	assert.Equal(t, "https://api.example.com/v1", doc.Variables[BaseURLVar])
	assert.EqualValues(t, 42, doc.Variables["id"])

	require.NotNil(t, doc.Auth)
	assert.Equal(t, auth.KindBearer, doc.Auth.Kind)
	assert.Equal(t, "{{token}}", doc.Auth.Bearer.Token)

	names := make([]string, len(doc.Steps))
	for i, s := range doc.Steps {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"listUsers", "createUser", "getUser", "DELETE /users/{id}"}, names)

	list := doc.Steps[0]
	assert.Equal(t, "GET", list.Request.Method)
	assert.Equal(t, "{{baseUrl}}/users", list.Request.URL)
	assert.Equal(t, map[string]string{"limit": "5"}, list.Request.Query)
	require.Len(t, list.Assertions, 1)
	assert.Equal(t, "status equals 200", list.Assertions[0].Shorthand)

	create := doc.Steps[1]
	assert.Equal(t, "Create a user", create.Description)
	assert.Equal(t, map[string]any{
		"email": "{{$faker.email}}",
		"name":  "{{$faker.name}}",
		"age":   int64(18),
	}, create.Request.Body)
	assert.Equal(t, "status equals 201", create.Assertions[0].Shorthand)

	get := doc.Steps[2]
	assert.Equal(t, "{{baseUrl}}/users/{{id}}", get.Request.URL)
	assert.Equal(t, "status equals 200", get.Assertions[0].Shorthand)

	assert.Equal(t, "status equals 204", doc.Steps[3].Assertions[0].Shorthand)

	_, err = config.ToChain(doc)
	assert.NoError(t, err)
}

func TestImport_Swagger2(t *testing.T) {
	src := `{
		"swagger": "2.0",
		"info": {"title": "Pets", "version": "1"},
		"host": "pets.example.com",
		"basePath": "/v2",
		"schemes": ["https"],
		"paths": {
			"/pets": {
				"get": {
					"operationId": "listPets",
					"responses": {"200": {"description": "ok"}}
				}
			}
		}
	}`
	doc, err := Import([]byte(src), "pets.json", FormatOpenAPI, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://pets.example.com/v2", doc.Variables[BaseURLVar])
	require.Len(t, doc.Steps, 1)
	assert.Equal(t, "listPets", doc.Steps[0].Name)
	assert.Equal(t, "{{baseUrl}}/pets", doc.Steps[0].Request.URL)
}

func TestImport_OpenAPIErrors(t *testing.T) {
	_, err := Import([]byte("openapi: 3.0.3\ninfo: {title: x, version: '1'}\npaths: {}\n"), "x.yaml", FormatOpenAPI, nil)
	var ie *ImportError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, FormatOpenAPI, ie.Format)

	_, err = Import([]byte("openapi: [unclosed"), "x.yaml", FormatOpenAPI, nil)
	assert.Error(t, err)
}

func TestImport_CURL(t *testing.T) {
	src := `curl -X POST https://api.example.com/login \
  -H 'Content-Type: application/json' \
  -d '{"user": "ann", "pass": "x"}'

# profile
curl -u ann:secret "https://api.example.com/me?verbose=1"
curl -G https://other.example.com/search -d q=go -d page=2
curl --data 'a=1&b=2' https://api.example.com/form
`
	doc, err := Import([]byte(src), "", FormatUnknown, &Options{Name: "session"})
	require.NoError(t, err)

	assert.Equal(t, "session", doc.Name)
	assert.Equal(t, "https://api.example.com", doc.Variables[BaseURLVar])
	require.Len(t, doc.Steps, 4)

	login := doc.Steps[0]
	assert.Equal(t, "POST /login", login.Name)
	assert.Equal(t, "{{baseUrl}}/login", login.Request.URL)
	body, ok := login.Request.Body.(map[string]any)
	require.True(t, ok, "json body stays structured")
	assert.Equal(t, "ann", body["user"])
	assert.Equal(t, "status < 400", login.Assertions[0].Shorthand)

	me := doc.Steps[1]
	assert.Equal(t, "GET /me", me.Name)
	assert.Equal(t, "{{baseUrl}}/me?verbose=1", me.Request.URL)
	require.NotNil(t, doc.Auth)
	assert.Equal(t, auth.KindBasic, doc.Auth.Kind)
	assert.Equal(t, "secret", doc.Auth.Basic.Password)

	search := doc.Steps[2]
	assert.Equal(t, "GET", search.Request.Method)
	assert.Equal(t, "https://other.example.com/search", search.Request.URL)
	assert.Equal(t, map[string]string{"q": "go", "page": "2"}, search.Request.Query)
	assert.Nil(t, search.Request.Body)

	form := doc.Steps[3]
	assert.Equal(t, "POST", form.Request.Method)
	assert.Equal(t, "a=1&b=2", form.Request.Body)
	assert.Equal(t, "application/x-www-form-urlencoded", form.Request.Headers["Content-Type"])
}

func TestImport_CURLErrors(t *testing.T) {
	_, err := Import([]byte("curl -H 'X: y'"), "", FormatCURL, nil)
	var ie *ImportError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 1, ie.Line)
	assert.Contains(t, err.Error(), "no URL")

	_, err = Import([]byte("curl -u a:b https://x.test/1\ncurl -u c:d https://x.test/2"), "", FormatCURL, nil)
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 2, ie.Line)
}

func TestTokenizeCURL(t *testing.T) {
	got := tokenizeCURL(`curl -H "X-A: 1" -d 'it''s' --data "" a\ b`)
	assert.Equal(t, []string{"curl", "-H", "X-A: 1", "-d", "its", "--data", "", "a b"}, got)
}

const collection = `{
  "info": {"name": "Shop", "description": {"content": "Shop flows"}},
  "variable": [
    {"key": "baseUrl", "value": "https://shop.test"},
    {"key": "unused", "value": "x", "disabled": true}
  ],
  "auth": {"type": "bearer", "bearer": [{"key": "token", "value": "{{token}}"}]},
  "item": [
    {
      "name": "Auth",
      "item": [
        {
          "name": "Login",
          "request": {
            "method": "post",
            "url": "{{baseUrl}}/login",
            "body": {"mode": "raw", "raw": "{\"user\": \"{{user}}\"}", "options": {"raw": {"language": "json"}}}
          },
          "event": [
            {"listen": "test", "script": {"exec": [
              "pm.test('ok', function () { pm.response.to.have.status(200); });",
              "pm.collectionVariables.set(\"token\", pm.response.json().data.token);"
            ]}}
          ]
        }
      ]
    },
    {
      "name": "Get user",
      "request": {
        "method": "GET",
        "header": [{"key": "Accept", "value": "application/json"}, {"key": "X-Off", "value": "1", "disabled": true}],
        "url": {
          "raw": "{{baseUrl}}/users/:id?expand=true",
          "query": [{"key": "expand", "value": "true"}],
          "variable": [{"key": "id", "value": "7"}]
        }
      },
      "response": [{"name": "found", "code": 200}]
    },
    {
      "name": "Search",
      "request": {
        "method": "POST",
        "url": "{{baseUrl}}/search",
        "auth": {"type": "apikey", "apikey": [{"key": "key", "value": "X-Key"}, {"key": "value", "value": "{{apiKey}}"}]},
        "body": {"mode": "urlencoded", "urlencoded": [{"key": "q", "value": "shoes"}]}
      }
    }
  ]
}`

func TestImport_Postman(t *testing.T) {
	doc, err := Import([]byte(collection), "shop.postman_collection.json", FormatUnknown, nil)
	require.NoError(t, err)

	assert.Equal(t, "Shop", doc.Name)
	assert.Equal(t, "Shop flows", doc.Description)
	assert.Equal(t, "https://shop.test", doc.Variables["baseUrl"])
	assert.NotContains(t, doc.Variables, "unused")
	require.NotNil(t, doc.Auth)
	assert.Equal(t, "{{token}}", doc.Auth.Bearer.Token)
	require.Len(t, doc.Steps, 3)

	login := doc.Steps[0]
	assert.Equal(t, "Auth / Login", login.Name)
	assert.Equal(t, "POST", login.Request.Method)
	assert.Equal(t, map[string]any{"user": "{{user}}"}, login.Request.Body)
	assert.Equal(t, "status equals 200", login.Assertions[0].Shorthand)
	assert.Equal(t, config.ExtractList{{Name: "token", Path: "$.data.token"}}, login.Extract)

	get := doc.Steps[1]
	assert.Equal(t, "{{baseUrl}}/users/{{id}}", get.Request.URL)
	assert.Equal(t, map[string]string{"expand": "true"}, get.Request.Query)
	assert.Equal(t, map[string]string{"Accept": "application/json"}, get.Request.Headers)
	assert.Equal(t, "7", doc.Variables["id"])
	assert.Equal(t, "status equals 200", get.Assertions[0].Shorthand)

	search := doc.Steps[2]
	assert.Equal(t, "q=shoes", search.Request.Body)
	assert.Equal(t, "{{apiKey}}", search.Request.Headers["X-Key"])
	assert.Equal(t, "application/x-www-form-urlencoded", search.Request.Headers["Content-Type"])
	assert.Equal(t, "status < 400", search.Assertions[0].Shorthand)
}

const session = `{
  "log": {
    "version": "1.2",
    "entries": [
      {
        "request": {"method": "GET", "url": "https://app.test/static/app.js", "headers": []},
        "response": {"status": 200, "content": {"mimeType": "application/javascript"}}
      },
      {
        "request": {
          "method": "POST",
          "url": "https://app.test/api/items",
          "headers": [
            {"name": ":authority", "value": "app.test"},
            {"name": "Cookie", "value": "sid=1"},
            {"name": "Accept", "value": "application/json"}
          ],
          "postData": {"mimeType": "application/json", "text": "{\"name\": \"pen\"}"}
        },
        "response": {"status": 201, "content": {"mimeType": "application/json"}}
      },
      {
        "request": {
          "method": "GET",
          "url": "https://app.test/api/items?page=1",
          "headers": [],
          "queryString": [{"name": "page", "value": "1"}]
        },
        "response": {"status": 200, "content": {"mimeType": "application/json"}}
      },
      {
        "request": {"method": "GET", "url": "https://cdn.test/api/config", "headers": []},
        "response": {"status": 304, "content": {"mimeType": "application/json"}}
      }
    ]
  }
}`

func TestImport_HAR(t *testing.T) {
	doc, err := Import([]byte(session), "session.har", FormatUnknown, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://app.test", doc.Variables[BaseURLVar])
	require.Len(t, doc.Steps, 3)

	create := doc.Steps[0]
	assert.Equal(t, "POST /api/items", create.Name)
	assert.Equal(t, "{{baseUrl}}/api/items", create.Request.URL)
	assert.Equal(t, map[string]string{
		"Accept":       "application/json",
		"Content-Type": "application/json",
	}, create.Request.Headers)
	assert.Equal(t, map[string]any{"name": "pen"}, create.Request.Body)
	assert.Equal(t, "status equals 201", create.Assertions[0].Shorthand)

	list := doc.Steps[1]
	assert.Equal(t, "{{baseUrl}}/api/items", list.Request.URL)
	assert.Equal(t, map[string]string{"page": "1"}, list.Request.Query)

	assert.Equal(t, "https://cdn.test/api/config", doc.Steps[2].Request.URL)

	withStatic, err := Import([]byte(session), "session.har", FormatHAR, &Options{IncludeStatic: true})
	require.NoError(t, err)
	assert.Len(t, withStatic.Steps, 4)
}

func TestImport_Errors(t *testing.T) {
	_, err := Import([]byte(`{"hello": 1}`), "x.json", FormatUnknown, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to detect format")

	_, err = Import([]byte(`{"log": {"version": "1.2", "entries": []}}`), "x.har", FormatHAR, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no requests")

	_, err = Import([]byte(`{"log": {}}`), "x.har", FormatHAR, nil)
	assert.ErrorContains(t, err, "missing log.version")
}

func TestImportError_Error(t *testing.T) {
	err := &ImportError{Format: FormatCURL, Line: 3, Message: "bad", Cause: errors.New("boom")}
	assert.Equal(t, "curl: bad (line 3): boom", err.Error())
	assert.Equal(t, "boom", errors.Unwrap(err).Error())
}

func TestStepNamer(t *testing.T) {
	n := stepNamer{}
	assert.Equal(t, "GET /", n.next("GET /"))
	assert.Equal(t, "GET / (2)", n.next("GET /"))
	assert.Equal(t, "step", n.next("  "))
}

func TestOriginOf(t *testing.T) {
	tests := []struct{ in, origin, rest string }{
		{"https://a.test/x/y?z=1", "https://a.test", "/x/y?z=1"},
		{"https://a.test", "https://a.test", ""},
		{"https://a.test?q=1", "https://a.test", "?q=1"},
		{"{{baseUrl}}/x", "", "{{baseUrl}}/x"},
	}
	for _, tt := range tests {
		origin, rest := originOf(tt.in)
		assert.Equal(t, tt.origin, origin, tt.in)
		assert.Equal(t, tt.rest, rest, tt.in)
	}
}
