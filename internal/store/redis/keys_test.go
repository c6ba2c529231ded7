package redis

import "testing"

func TestKeysAreNamespaced(t *testing.T) {
	for _, k := range []string{SessionKey("x"), AllSessionsKey(), WidgetKey("x"), AllWidgetsKey(), FailedFeedbackKey()} {
		if len(k) < 7 || k[:7] != "untold:" {
			t.Errorf("key %q is not under the untold: namespace", k)
		}
	}
}
