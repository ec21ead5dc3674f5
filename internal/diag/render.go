package diag

import (
	"fmt"
	"io"
	"strings"
)

// WriteText renders diagnostics one per line as
//
//	file:line:col: CODE Kind: message
//	    via a → b → c
//
// in the order given. Callers sort first.
func WriteText(w io.Writer, ds []Diagnostic) error {
	for _, d := range ds {
		if _, err := fmt.Fprintf(w, "%s: %s %s: %s\n", d.Pos, d.Code, d.Kind, d.Message); err != nil {
			return err
		}
		if len(d.Chain) > 1 {
			if _, err := fmt.Fprintf(w, "    via %s\n", strings.Join(d.Chain, " → ")); err != nil {
				return err
			}
		}
	}
	return nil
}
