package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricCatalogQuery     = "CatalogQuery"
	MetricCatalogReload    = "CatalogReload"
	MetricCatalogVersions  = "CatalogVersions"
	MetricCatalogPublished = "CatalogPublished"
	MetricCatalogRejected  = "CatalogRejected"
	MetricRuleNoMatch      = "RuleNoMatch"
	MetricAPILatency       = "APILatency"

	// Dimension Keys
	DimQuery    = "Query"
	DimResult   = "Result"
	DimCatalog  = "Catalog"
	DimEndpoint = "Endpoint"

	// Metric Namespace
	MetricNamespace = "Pricebook"
)

// Query result dimension values.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultNoMatch  = "no_match"
	ResultError    = "error"
)
