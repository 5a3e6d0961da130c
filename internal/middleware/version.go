package middleware

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"valeservice/internal/common"

	"github.com/labstack/echo/v4"
)

// APIVersion represents API version information
type APIVersion struct {
	Version    string     `json:"version"`
	Status     string     `json:"status"` // "active", "deprecated"
	SunsetDate *time.Time `json:"sunset_date,omitempty"`
}

// VersionMiddleware tags responses with the API version they were served by
type VersionMiddleware struct {
	versions map[string]APIVersion
}

func NewVersionMiddleware() *VersionMiddleware {
	return &VersionMiddleware{
		versions: map[string]APIVersion{
			"v1": {Version: "v1", Status: "active"},
		},
	}
}

// Group mounts a version prefix on e with the version headers applied.
func (vm *VersionMiddleware) Group(e *echo.Echo, version string, m ...echo.MiddlewareFunc) *echo.Group {
	group := e.Group("/"+version, m...)
	group.Use(vm.VersionHeader(version))
	return group
}

// VersionHeader adds version information to response headers
func (vm *VersionMiddleware) VersionHeader(version string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("X-API-Version", version)

			ver, exists := vm.versions[version]
			if !exists {
				return c.JSON(http.StatusNotFound, common.CreateErrorResponse("NOT_FOUND", "Unsupported API version", map[string]interface{}{
					"supported_versions": strings.Join(vm.Supported(), ", "),
				}))
			}
			if ver.Status == "deprecated" && ver.SunsetDate != nil {
				c.Response().Header().Set("X-API-Deprecated", "true")
				c.Response().Header().Set("X-API-Sunset", ver.SunsetDate.Format(time.RFC3339))
			}
			return next(c)
		}
	}
}

// Deprecate marks version as deprecated until sunset.
func (vm *VersionMiddleware) Deprecate(version string, sunset time.Time) {
	vm.versions[version] = APIVersion{Version: version, Status: "deprecated", SunsetDate: &sunset}
}

func (vm *VersionMiddleware) Supported() []string {
	versions := make([]string, 0, len(vm.versions))
	for version := range vm.versions {
		versions = append(versions, version)
	}
	sort.Strings(versions)
	return versions
}
