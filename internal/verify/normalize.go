package verify

import (
	"encoding/json"
	"fmt"

	"topolens/internal/models"
)

// normalize maps the engine's query-type-specific raw rows into the
// discriminated results union. A row that cannot be mapped fails the whole
// normalization with a descriptive error; the orchestrator turns that into
// a FAILED result, never a crash.
func normalize(queryType models.QueryType, rows []json.RawMessage) (models.VerificationResults, error) {
	var out models.VerificationResults
	switch queryType {
	case models.QueryReachability:
		out.Reachability = make([]models.ReachabilityRow, 0, len(rows))
		for i, raw := range rows {
			var row models.ReachabilityRow
			if err := json.Unmarshal(raw, &row); err != nil {
				return out, fmt.Errorf("reachability row %d: %w", i, err)
			}
			if row.Flow == "" && row.Outcome == "" {
				return out, fmt.Errorf("reachability row %d: missing flow and outcome", i)
			}
			for _, trace := range row.Traces {
				for j, hop := range trace.Hops {
					if hop.Node == "" {
						return out, fmt.Errorf("reachability row %d: hop %d has no node", i, j)
					}
				}
			}
			out.Reachability = append(out.Reachability, row)
		}
	case models.QueryACLFilter:
		out.ACLMatches = make([]models.ACLMatchRow, 0, len(rows))
		for i, raw := range rows {
			var row models.ACLMatchRow
			if err := json.Unmarshal(raw, &row); err != nil {
				return out, fmt.Errorf("acl row %d: %w", i, err)
			}
			if row.Node == "" || row.Action == "" {
				return out, fmt.Errorf("acl row %d: missing node or action", i)
			}
			out.ACLMatches = append(out.ACLMatches, row)
		}
	case models.QueryRouting:
		out.Routes = make([]models.RouteRow, 0, len(rows))
		for i, raw := range rows {
			var row models.RouteRow
			if err := json.Unmarshal(raw, &row); err != nil {
				return out, fmt.Errorf("route row %d: %w", i, err)
			}
			if row.Node == "" || row.Network == "" {
				return out, fmt.Errorf("route row %d: missing node or network", i)
			}
			out.Routes = append(out.Routes, row)
		}
	default:
		return out, fmt.Errorf("unsupported query type %q", queryType)
	}
	return out, nil
}
