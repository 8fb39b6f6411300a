package federation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/dataspace/catalogue-coordinator/pkg/log"
)

const forwardTimeout = 30 * time.Second

// Forwarded carries the upstream response verbatim.
type Forwarded struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Forwarder rewrites a query into a UNION of SERVICE blocks, one per live
// node, and forwards it to a single upstream SPARQL endpoint.
type Forwarder struct {
	upstream string
	nodes    NodeSource
	http     *http.Client
}

// NewForwarder creates a rewrite-and-forward engine targeting upstream.
func NewForwarder(upstream string, nodes NodeSource) *Forwarder {
	return &Forwarder{
		upstream: upstream,
		nodes:    nodes,
		http:     &http.Client{Timeout: forwardTimeout},
	}
}

// Forward rewrites the query over the live node set and posts it upstream.
// The upstream's status, content type and body pass through verbatim.
func (f *Forwarder) Forward(ctx context.Context, query string) (*Forwarded, error) {
	nodes := f.nodes.Live()
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}
	endpoints := make([]string, len(nodes))
	for i, node := range nodes {
		endpoints[i] = node.NodeURL + "/sparql"
	}

	rewritten, err := Rewrite(query, endpoints)
	if err != nil {
		return nil, err
	}
	log.WithComponent("federation").Debug().Int("endpoints", len(endpoints)).Msg("forwarding rewritten query upstream")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.upstream, bytes.NewBufferString(rewritten))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/sparql-query")
	req.Header.Set("Accept", "application/sparql-results+json")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream endpoint: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading upstream response: %w", err)
	}
	return &Forwarded{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

var whereKeyword = regexp.MustCompile(`(?i)\bwhere\b`)

// Rewrite turns "prefix WHERE { body }" into a prefix over a UNION of
// SERVICE blocks, one per endpoint. ASK, CONSTRUCT and DESCRIBE queries
// without an explicit WHERE fall back to their first group pattern.
func Rewrite(query string, endpoints []string) (string, error) {
	if len(endpoints) == 0 {
		return "", ErrNoNodes
	}

	prefix, body, err := splitQuery(query)
	if err != nil {
		return "", err
	}

	var union strings.Builder
	for i, endpoint := range endpoints {
		if i > 0 {
			union.WriteString(" UNION ")
		}
		fmt.Fprintf(&union, "{ SERVICE <%s> { %s } }", endpoint, body)
	}
	return fmt.Sprintf("%s WHERE { %s }", strings.TrimSpace(prefix), union.String()), nil
}

// splitQuery separates the query head from its outer group pattern.
func splitQuery(query string) (prefix, body string, err error) {
	var bodyStart int
	if loc := whereKeyword.FindStringIndex(query); loc != nil {
		prefix = query[:loc[0]]
		bodyStart = loc[1]
	} else {
		// ASK { … } and friends carry the pattern without a WHERE keyword.
		open := strings.Index(query, "{")
		if open < 0 {
			return "", "", fmt.Errorf("query has no group pattern")
		}
		prefix = query[:open]
		bodyStart = open
	}

	rest := query[bodyStart:]
	open := strings.Index(rest, "{")
	if open < 0 {
		return "", "", fmt.Errorf("query has no group pattern")
	}

	depth := 0
	for i := open; i < len(rest); i++ {
		switch rest[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return prefix, strings.TrimSpace(rest[open+1 : i]), nil
			}
		}
	}
	return "", "", fmt.Errorf("unbalanced group pattern")
}
