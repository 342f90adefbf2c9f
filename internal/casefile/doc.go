// Package casefile loads keyword-driven test cases from YAML documents.
//
// A case document holds a single test_case container with an id and an
// ordered list of steps:
//
//	test_case:
//	  id: TC_001
//	  name: Create and verify
//	  steps:
//	    - action: echo
//	      params: {x: hello}
//	    - action: verify_equal
//	      params: {actual: "${last_result}", expected: hello}
//
// Parse and ParseFile fail with an api.MalformedCaseError for structural
// problems. LoadDirectory never fails as a whole: broken files are skipped
// and returned as LoadErrors.
package casefile
