package policy

// DefaultBuiltinExcludes returns the prefixes/markers that are always
// excluded regardless of user configuration (§6's "Selection Policy
// defaults"): the Go standard library, common logging and ORM frameworks,
// FlowTrace's own packages, and a generic test-harness marker.
func DefaultBuiltinExcludes() []string {
	return []string{
		// Go standard library.
		"runtime.", "reflect.", "testing.", "syscall.", "unsafe.",
		"internal/", "vendor/",
		// Common logging frameworks.
		"github.com/sirupsen/logrus",
		"go.uber.org/zap",
		"log/slog",
		// Common ORM / serialization internals.
		"gorm.io/gorm",
		"encoding/json",
		"google.golang.org/protobuf",
		// FlowTrace's own packages — never instrument the instrumenter.
		"flowtrace/internal/rewriter",
		"flowtrace/internal/interceptor",
		"flowtrace/internal/pipeline",
		"flowtrace/internal/query",
		"flowtrace/internal/policy",
		// Generic test-harness marker (substring match, see matchesBuiltin).
		"Test",
	}
}
