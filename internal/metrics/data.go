package metrics

import "runrelay/internal/reconcile"

func countOf(v any) (int, bool) {
	switch d := v.(type) {
	case reconcile.RelayEvent:
		return d.Count, true
	case int:
		return d, true
	}
	return 0, false
}

func errorOf(v any) (string, bool) {
	switch d := v.(type) {
	case reconcile.RelayEvent:
		return d.Error, d.Error != ""
	case error:
		return d.Error(), true
	case string:
		return d, d != ""
	}
	return "", false
}
