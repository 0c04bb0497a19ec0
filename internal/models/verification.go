package models

import "time"

// QueryType is the closed set of verification query kinds.
type QueryType string

const (
	QueryReachability QueryType = "REACHABILITY"
	QueryACLFilter    QueryType = "ACL_FILTER"
	QueryRouting      QueryType = "ROUTING"
)

// Valid reports whether q is a member of the closed set.
func (q QueryType) Valid() bool {
	switch q {
	case QueryReachability, QueryACLFilter, QueryRouting:
		return true
	}
	return false
}

// QueryStatus is the lifecycle state of a verification query. Terminal once
// set to anything other than IN_PROGRESS.
type QueryStatus string

const (
	QueryInProgress QueryStatus = "IN_PROGRESS"
	QuerySuccess    QueryStatus = "SUCCESS"
	QueryFailed     QueryStatus = "FAILED"
	QueryTimeout    QueryStatus = "TIMEOUT"
)

// TraceHop is one hop in a reachability flow trace.
type TraceHop struct {
	Node         string `json:"node"`
	Action       string `json:"action"`
	InterfaceIn  string `json:"interfaceIn,omitempty"`
	InterfaceOut string `json:"interfaceOut,omitempty"`
}

// FlowTrace is one path a flow took through the network.
type FlowTrace struct {
	Hops []TraceHop `json:"hops"`
}

// ReachabilityRow is one normalized reachability result.
type ReachabilityRow struct {
	Flow    string      `json:"flow"`
	Traces  []FlowTrace `json:"traces"`
	Outcome string      `json:"outcome"`
}

// ACLMatchRow is one normalized ACL filter evaluation result.
type ACLMatchRow struct {
	Node        string `json:"node"`
	Filter      string `json:"filter"`
	Action      string `json:"action"`
	LineNumber  *int   `json:"lineNumber,omitempty"`
	LineContent string `json:"lineContent,omitempty"`
}

// RouteRow is one normalized routing table entry.
type RouteRow struct {
	Node     string `json:"node"`
	Network  string `json:"network"`
	Protocol string `json:"protocol"`
	NextHop  string `json:"nextHop"`
	Metric   *int64 `json:"metric,omitempty"`
}

// VerificationResults is the discriminated union of result shapes. Exactly
// one slice is populated, selected by the owning result's QueryType.
type VerificationResults struct {
	Reachability []ReachabilityRow `json:"reachability,omitempty"`
	ACLMatches   []ACLMatchRow     `json:"aclMatches,omitempty"`
	Routes       []RouteRow        `json:"routes,omitempty"`
}

// VerificationResult is the envelope for one verification query. It is the
// error channel for verification: failures yield a terminal FAILED/TIMEOUT
// result, never an error to the caller.
type VerificationResult struct {
	QueryID         string              `json:"queryId"`
	QueryType       QueryType           `json:"queryType"`
	Status          QueryStatus         `json:"status"`
	Parameters      map[string]string   `json:"parameters"`
	Results         VerificationResults `json:"results"`
	ErrorMessage    string              `json:"errorMessage,omitempty"`
	ExecutionTimeMs int64               `json:"executionTimeMs"`
	ExecutedAt      time.Time           `json:"executedAt"`
}
