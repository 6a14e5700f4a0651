package webpush

import (
	"testing"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/mesahub/mesa/types"
)

func Test_urgencyFor(t *testing.T) {
	tt := []struct {
		in   types.NotificationPriority
		want webpush.Urgency
	}{
		{types.NotificationPriorityLow, webpush.UrgencyLow},
		{types.NotificationPriorityNormal, webpush.UrgencyNormal},
		{types.NotificationPriorityHigh, webpush.UrgencyHigh},
		{types.NotificationPriorityUrgent, webpush.UrgencyHigh},
		{"", webpush.UrgencyNormal},
	}

	for _, tc := range tt {
		if got := urgencyFor(tc.in); got != tc.want {
			t.Errorf("urgencyFor(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestClient_Enabled(t *testing.T) {
	disabled := NewClient(Config{})
	if disabled.Enabled() {
		t.Error("want client without VAPID credentials to report disabled")
	}

	enabled := NewClient(Config{
		VAPIDPublicKey:  "pub",
		VAPIDPrivateKey: "priv",
		Subscriber:      "mailto:ops@mesa.app",
	})
	if !enabled.Enabled() {
		t.Error("want client with VAPID credentials to report enabled")
	}
}
