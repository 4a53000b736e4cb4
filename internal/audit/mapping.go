package audit

import (
	"net/http"
	"strings"
)

// ActionResource holds action and resource derived from an HTTP method and route pattern.
type ActionResource struct {
	Action   string
	Resource string
}

// ParseRoute returns action and resource for an HTTP request matched by a route
// pattern (e.g. PATCH /devices/{device_id} -> update/device).
// Resource is the first path segment, singularized; "data" maps to "gps_fix".
func ParseRoute(method, pattern string) ActionResource {
	segs := strings.Split(strings.Trim(pattern, "/"), "/")
	if len(segs) == 0 || segs[0] == "" {
		return ActionResource{Action: methodToAction(method, pattern), Resource: "unknown"}
	}
	resource := segs[0]
	switch {
	case resource == "data":
		resource = "gps_fix"
	case resource == "auth" && len(segs) > 1:
		return ActionResource{Action: strings.ReplaceAll(segs[1], "-", "_"), Resource: "auth"}
	case strings.HasSuffix(resource, "s"):
		resource = strings.TrimSuffix(resource, "s")
	}
	if len(segs) > 2 {
		// nested collection, e.g. /devices/{device_id}/sync-logs
		resource = resource + "_" + strings.TrimSuffix(strings.ReplaceAll(segs[2], "-", "_"), "s")
	}
	return ActionResource{Action: methodToAction(method, pattern), Resource: resource}
}

func methodToAction(method, pattern string) string {
	switch method {
	case http.MethodGet:
		if strings.Contains(pattern, "{") && !strings.HasSuffix(pattern, "s") {
			return "get"
		}
		return "list"
	case http.MethodPost:
		if strings.HasSuffix(pattern, "/batch") {
			return "batch_create"
		}
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
