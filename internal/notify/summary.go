// File: internal/notify/summary.go
package notify

import (
	"fmt"
	"strings"

	"github.com/loks666/anyrouter-autolog/internal/results"
)

// Summary renders the run outcome as a notification body: one line per
// account plus a success tally.
func Summary(records []results.Result) string {
	var b strings.Builder
	ok := 0
	for _, rec := range records {
		if rec.Cookies.Session != "" || rec.APIUser != "" {
			ok++
			fmt.Fprintf(&b, "✅ %s: 登录成功\n", rec.Name)
		} else {
			fmt.Fprintf(&b, "❌ %s: 登录失败\n", rec.Name)
		}
	}
	fmt.Fprintf(&b, "\n成功 %d/%d", ok, len(records))
	return b.String()
}
