package federation

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sort"
	"testing"

	"github.com/dataspace/catalogue-coordinator/pkg/types"
)

type staticNodes []*types.Node

func (s staticNodes) Live() []*types.Node { return s }

func sparqlNode(t *testing.T, bindings string) *types.Node {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sparql" {
			http.NotFound(w, r)
			return
		}
		if accept := r.Header.Get("Accept"); accept != "application/sparql-results+json" {
			t.Errorf("Accept = %q", accept)
		}
		w.Header().Set("Content-Type", "application/sparql-results+json")
		fmt.Fprintf(w, `{"head":{"vars":["x"]},"results":{"bindings":%s}}`, bindings)
	}))
	t.Cleanup(server.Close)
	return &types.Node{Owner: server.URL, NodeURL: server.URL, Status: types.NodeStatusHealthy}
}

// TestQueryMergesBindings verifies the multiset union across live nodes.
func TestQueryMergesBindings(t *testing.T) {
	a := sparqlNode(t, `[{"x":{"type":"literal","value":"1"}}]`)
	b := sparqlNode(t, `[{"x":{"type":"literal","value":"2"}}]`)
	e := NewEngine(staticNodes{a, b})

	results, err := e.Query(context.Background(), "SELECT ?x WHERE { ?s ?p ?x }")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results.Results.Bindings) != 2 {
		t.Fatalf("bindings = %v", results.Results.Bindings)
	}
	if !reflect.DeepEqual(results.Head.Vars, []string{"x"}) {
		t.Errorf("head.vars = %v, want [x]", results.Head.Vars)
	}

	var values []string
	for _, binding := range results.Results.Bindings {
		cell := binding["x"].(map[string]interface{})
		values = append(values, cell["value"].(string))
	}
	sort.Strings(values)
	if !reflect.DeepEqual(values, []string{"1", "2"}) {
		t.Errorf("merged values = %v", values)
	}
}

// TestQueryDeadNodeContributesNothing verifies one dead node never fails
// the whole query.
func TestQueryDeadNodeContributesNothing(t *testing.T) {
	live := sparqlNode(t, `[{"x":{"type":"literal","value":"1"}}]`)
	deadServer := httptest.NewServer(http.NotFoundHandler())
	deadServer.Close()
	dead := &types.Node{Owner: "dead", NodeURL: deadServer.URL}

	e := NewEngine(staticNodes{live, dead})
	results, err := e.Query(context.Background(), "SELECT ?x WHERE { ?s ?p ?x }")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results.Results.Bindings) != 1 {
		t.Errorf("bindings = %v, want the live node's only", results.Results.Bindings)
	}
}

// TestQueryNoNodes verifies the empty cluster error.
func TestQueryNoNodes(t *testing.T) {
	e := NewEngine(staticNodes{})
	if _, err := e.Query(context.Background(), "SELECT * WHERE { ?s ?p ?o }"); err != ErrNoNodes {
		t.Errorf("err = %v, want ErrNoNodes", err)
	}
}

// TestSelectVars covers projection extraction.
func TestSelectVars(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"SELECT ?a ?b WHERE { ?a ?p ?b }", []string{"a", "b"}},
		{"select distinct ?x where { ?x a ?t }", []string{"x"}},
		{"PREFIX ex: <http://ex/>\nSELECT ?name ?name WHERE { }", []string{"name"}},
		{"SELECT * WHERE { ?s ?p ?o }", nil},
		{"ASK { ?s ?p ?o }", nil},
	}
	for _, tt := range tests {
		if got := SelectVars(tt.query); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SelectVars(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

// TestVarsFromBindings covers the SELECT * fallback.
func TestVarsFromBindings(t *testing.T) {
	got := varsFromBindings([]map[string]interface{}{
		{"b": nil, "a": nil},
		{"a": nil, "c": nil},
	})
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("varsFromBindings = %v", got)
	}
}

// TestRewrite verifies the SERVICE union shape.
func TestRewrite(t *testing.T) {
	got, err := Rewrite("SELECT ?x WHERE { ?s ?p ?x }", []string{"http://a/sparql", "http://b/sparql"})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	want := "SELECT ?x WHERE { { SERVICE <http://a/sparql> { ?s ?p ?x } } UNION { SERVICE <http://b/sparql> { ?s ?p ?x } } }"
	if got != want {
		t.Errorf("Rewrite =\n%s\nwant\n%s", got, want)
	}
}

// TestRewriteNestedGroups verifies balanced-brace extraction.
func TestRewriteNestedGroups(t *testing.T) {
	got, err := Rewrite("SELECT ?x WHERE { { ?s ?p ?x } FILTER(?x > 1) }", []string{"http://a/sparql"})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	want := "SELECT ?x WHERE { { SERVICE <http://a/sparql> { { ?s ?p ?x } FILTER(?x > 1) } } }"
	if got != want {
		t.Errorf("Rewrite = %s", got)
	}
}

// TestRewriteAsk verifies the WHERE-less fallback.
func TestRewriteAsk(t *testing.T) {
	got, err := Rewrite("ASK { ?s ?p ?o }", []string{"http://a/sparql"})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	want := "ASK WHERE { { SERVICE <http://a/sparql> { ?s ?p ?o } } }"
	if got != want {
		t.Errorf("Rewrite = %s", got)
	}
}

// TestRewriteMalformed verifies error handling for bodyless queries.
func TestRewriteMalformed(t *testing.T) {
	if _, err := Rewrite("SELECT ?x", []string{"http://a/sparql"}); err == nil {
		t.Error("Rewrite of bodyless query must fail")
	}
	if _, err := Rewrite("SELECT ?x WHERE { broken", []string{"http://a/sparql"}); err == nil {
		t.Error("Rewrite of unbalanced query must fail")
	}
}

// TestForwardPassthrough verifies upstream status and body pass through.
func TestForwardPassthrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/sparql-results+json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"head":{"vars":[]},"results":{"bindings":[]}}`)
	}))
	t.Cleanup(upstream.Close)

	f := NewForwarder(upstream.URL, staticNodes{{Owner: "A", NodeURL: "http://a"}})
	forwarded, err := f.Forward(context.Background(), "SELECT ?x WHERE { ?s ?p ?x }")
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if forwarded.StatusCode != http.StatusOK {
		t.Errorf("status = %d", forwarded.StatusCode)
	}
	if forwarded.ContentType != "application/sparql-results+json" {
		t.Errorf("content type = %q", forwarded.ContentType)
	}
}

// TestForwardUpstreamDown verifies the error for an unreachable upstream.
func TestForwardUpstreamDown(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	f := NewForwarder(dead.URL, staticNodes{{Owner: "A", NodeURL: "http://a"}})
	if _, err := f.Forward(context.Background(), "SELECT ?x WHERE { ?s ?p ?x }"); err == nil {
		t.Error("Forward to dead upstream must error")
	}
}
