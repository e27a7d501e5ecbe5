// Package openapi produces the OpenAPI 3.0 document for the honeymesh API
// by reflecting over the handler's request and response types.
package openapi

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

// =============================================================================
// Generator
// =============================================================================

// Resource describes one REST resource for document generation.
type Resource struct {
	// Name is the collection path segment ("deployments", "templates").
	Name string
	// IDParam is the path parameter naming one item ("name", "slug").
	IDParam string
	// Model is the response struct reflected into the item schema.
	Model any
	// CreateModel is the request struct for POST, nil when creation takes
	// a non-JSON body.
	CreateModel any

	SupportsList   bool
	SupportsGet    bool
	SupportsCreate bool
	SupportsDelete bool

	// Actions are POST sub-paths on one item ("start", "stop").
	Actions []string
	// Views are GET sub-paths on one item ("status", "events").
	Views []string
}

// Generator builds and caches the OpenAPI document.
type Generator struct {
	title       string
	version     string
	description string
	servers     []string
	resources   []Resource

	mu     sync.RWMutex
	cached *openapi3.T
}

// Option configures the generator.
type Option func(*Generator)

// WithTitle sets the API title.
func WithTitle(title string) Option {
	return func(g *Generator) { g.title = title }
}

// WithVersion sets the API version.
func WithVersion(version string) Option {
	return func(g *Generator) { g.version = version }
}

// WithServer adds a server URL.
func WithServer(url string) Option {
	return func(g *Generator) { g.servers = append(g.servers, url) }
}

// NewGenerator creates a generator with honeymesh defaults.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		title:       "HoneyMesh API",
		version:     "1.0.0",
		description: "Honeypot deployment orchestrator API",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Register adds a resource to the document.
func (g *Generator) Register(res Resource) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resources = append(g.resources, res)
	g.cached = nil
}

// Generate produces the complete document, cached after the first call.
func (g *Generator) Generate() *openapi3.T {
	g.mu.RLock()
	if g.cached != nil {
		spec := g.cached
		g.mu.RUnlock()
		return spec
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cached != nil {
		return g.cached
	}

	spec := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       g.title,
			Version:     g.version,
			Description: g.description,
		},
		Servers: make(openapi3.Servers, 0, len(g.servers)),
		Paths:   &openapi3.Paths{},
		Components: &openapi3.Components{
			Schemas: make(openapi3.Schemas),
		},
	}
	for _, url := range g.servers {
		spec.Servers = append(spec.Servers, &openapi3.Server{URL: url})
	}

	spec.Components.Schemas["Error"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error":          stringSchema(),
				"code":           stringSchema(),
				"field":          stringSchema(),
				"owner":          stringSchema(),
				"suggested_port": intSchema(),
			},
			Required: []string{"error", "code"},
		},
	}

	for _, res := range g.resources {
		g.addResource(spec, res)
	}

	g.cached = spec
	return spec
}

// Handler serves the document as JSON.
func (g *Generator) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(g.Generate()); err != nil {
			http.Error(w, "failed to encode OpenAPI document", http.StatusInternalServerError)
		}
	}
}

// =============================================================================
// Path Generation
// =============================================================================

func (g *Generator) addResource(spec *openapi3.T, res Resource) {
	basePath := "/api/v1/" + res.Name
	schemaName := capitalize(singularize(res.Name))

	spec.Components.Schemas[schemaName] = extractSchema(res.Model)
	if res.CreateModel != nil {
		spec.Components.Schemas["Create"+schemaName+"Request"] = extractSchema(res.CreateModel)
	}

	collection := &openapi3.PathItem{}
	if res.SupportsList {
		collection.Get = &openapi3.Operation{
			OperationID: "list" + capitalize(res.Name),
			Summary:     "List " + res.Name,
			Tags:        []string{capitalize(res.Name)},
			Parameters: openapi3.Parameters{
				queryParam("limit"),
				queryParam("offset"),
			},
			Responses: &openapi3.Responses{},
		}
	}
	if res.SupportsCreate {
		op := &openapi3.Operation{
			OperationID: "create" + schemaName,
			Summary:     "Create a " + singularize(res.Name),
			Tags:        []string{capitalize(res.Name)},
			Responses:   &openapi3.Responses{},
		}
		if res.CreateModel != nil {
			op.RequestBody = &openapi3.RequestBodyRef{
				Value: &openapi3.RequestBody{
					Required: true,
					Content: openapi3.Content{
						"application/json": &openapi3.MediaType{
							Schema: &openapi3.SchemaRef{
								Ref: "#/components/schemas/Create" + schemaName + "Request",
							},
						},
					},
				},
			}
		}
		collection.Post = op
	}
	spec.Paths.Set(basePath, collection)

	itemPath := basePath + "/{" + res.IDParam + "}"
	item := &openapi3.PathItem{
		Parameters: openapi3.Parameters{pathParam(res.IDParam)},
	}
	if res.SupportsGet {
		item.Get = &openapi3.Operation{
			OperationID: "get" + schemaName,
			Summary:     "Get a " + singularize(res.Name),
			Tags:        []string{capitalize(res.Name)},
			Responses:   &openapi3.Responses{},
		}
	}
	if res.SupportsDelete {
		item.Delete = &openapi3.Operation{
			OperationID: "delete" + schemaName,
			Summary:     "Delete a " + singularize(res.Name),
			Tags:        []string{capitalize(res.Name)},
			Responses:   &openapi3.Responses{},
		}
	}
	spec.Paths.Set(itemPath, item)

	for _, action := range res.Actions {
		spec.Paths.Set(itemPath+"/"+action, &openapi3.PathItem{
			Parameters: openapi3.Parameters{pathParam(res.IDParam)},
			Post: &openapi3.Operation{
				OperationID: action + schemaName,
				Summary:     capitalize(action) + " a " + singularize(res.Name),
				Tags:        []string{capitalize(res.Name)},
				Responses:   &openapi3.Responses{},
			},
		})
	}

	for _, view := range res.Views {
		spec.Paths.Set(itemPath+"/"+view, &openapi3.PathItem{
			Parameters: openapi3.Parameters{pathParam(res.IDParam)},
			Get: &openapi3.Operation{
				OperationID: "get" + schemaName + capitalize(view),
				Summary:     "Get " + singularize(res.Name) + " " + view,
				Tags:        []string{capitalize(res.Name)},
				Responses:   &openapi3.Responses{},
			},
		})
	}
}

// =============================================================================
// Schema Reflection
// =============================================================================

// extractSchema reflects a struct into an object schema using its json tags.
func extractSchema(model any) *openapi3.SchemaRef {
	t := reflect.TypeOf(model)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	schema := &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: make(openapi3.Schemas),
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		name := field.Name
		if jsonTag != "" {
			if parts := strings.Split(jsonTag, ","); parts[0] != "" {
				name = parts[0]
			}
		}

		if prop := typeToSchema(field.Type); prop != nil {
			schema.Properties[name] = prop
		}
	}

	return &openapi3.SchemaRef{Value: schema}
}

func typeToSchema(t reflect.Type) *openapi3.SchemaRef {
	switch t.Kind() {
	case reflect.String:
		return stringSchema()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return intSchema()
	case reflect.Float32, reflect.Float64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"number"}}}
	case reflect.Bool:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}}
	case reflect.Slice, reflect.Array:
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:  &openapi3.Types{"array"},
				Items: typeToSchema(t.Elem()),
			},
		}
	case reflect.Map:
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:                 &openapi3.Types{"object"},
				AdditionalProperties: openapi3.AdditionalProperties{Schema: typeToSchema(t.Elem())},
			},
		}
	case reflect.Ptr:
		schema := typeToSchema(t.Elem())
		if schema != nil && schema.Value != nil {
			schema.Value.Nullable = true
		}
		return schema
	case reflect.Struct:
		if t == reflect.TypeOf(time.Time{}) {
			return &openapi3.SchemaRef{
				Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"},
			}
		}
		return extractSchema(reflect.New(t).Interface())
	default:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}
	}
}

// =============================================================================
// Helpers
// =============================================================================

func stringSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}
}

func intSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}}
}

func pathParam(name string) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: &openapi3.Parameter{
			Name:     name,
			In:       "path",
			Required: true,
			Schema:   stringSchema(),
		},
	}
}

func queryParam(name string) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: &openapi3.Parameter{
			Name:   name,
			In:     "query",
			Schema: intSchema(),
		},
	}
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func singularize(s string) string {
	if strings.HasSuffix(s, "s") {
		return s[:len(s)-1]
	}
	return s
}
