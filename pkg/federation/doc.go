/*
Package federation answers one SPARQL query with results from every live
catalogue node.

The default engine fans the query out to each node's sparql endpoint and
concatenates the returned bindings; a node that errors or times out
contributes an empty list. head.vars comes from the SELECT projection,
with the union of bound names as the SELECT * fallback.

The forwarder is the alternative shape for deployments with an upstream
aggregation endpoint: the query's group pattern is rewritten into a
UNION of SERVICE blocks over the live nodes and the upstream's response
passes through verbatim.
*/
package federation
