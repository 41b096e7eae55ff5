// Package query describes statement lookups as data.
//
// It has two layers:
//
//	[FindBy filter map] -> ParseFilter -> StatementsFilter -> Query(lrsID) -> Select
//
// StatementsFilter is the typed form of the xAPI statement filter
// parameters this store supports. Select and its predicates are a small
// relational IR that internal/querysql compiles to parameterized SQL.
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed with marker methods, so backends can use
// exhaustive type switches:
//
//	switch p := pred.(type) {
//	case Equals:
//	case Compare:
//	case In:
//	case And:
//	default:
//	    // impossible outside this package
//	}
//
// VALUES:
//
// Literal values are restricted to string, int64 and bool. Timestamps are
// compared as Unix microseconds, the representation used by the store.
//
// UNSUPPORTED FILTERS:
//
// Filter keys the store cannot honour are rejected with ErrUnsupportedFilter
// instead of being ignored, so a caller never receives an unfiltered result
// it believes to be filtered.
package query
