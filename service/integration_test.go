package service

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mesahub/mesa/auth"
	"github.com/mesahub/mesa/cockroach"
	"github.com/mesahub/mesa/cockroach/migrator"
	"github.com/mesahub/mesa/errs"
	"github.com/mesahub/mesa/types"
	"github.com/mesahub/mesa/webpush"
	"github.com/ory/dockertest/v3"
)

var (
	testDB        *pgxpool.Pool
	testCockroach *cockroach.Cockroach
)

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	var skipIntegration bool
	flag.BoolVar(&skipIntegration, "skip-integration", false, "Skip integration tests docker setup")
	flag.Parse()

	if skipIntegration || testing.Short() {
		return m.Run()
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		fmt.Printf("could not create docker pool: %v\n", err)
		return 1
	}

	var cleanup func() error
	testDB, cleanup, err = setupTestDB(pool)
	if err != nil {
		fmt.Printf("could not setup test db: %v\n", err)
		return 1
	}
	testCockroach = cockroach.New(testDB)

	if err := migrator.Migrate(context.Background(), testDB, cockroach.MigrationsFS); err != nil {
		fmt.Printf("could not migrate schema: %v\n", err)
		return 1
	}

	defer func() {
		if err := cleanup(); err != nil {
			fmt.Printf("could not cleanup cockroach container: %v\n", err)
		}
	}()

	return m.Run()
}

func setupTestDB(pool *dockertest.Pool) (*pgxpool.Pool, func() error, error) {
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "cockroachdb/cockroach",
		Tag:        "latest",
		Cmd:        []string{"start-single-node", "--insecure"},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create cockroach resource: %w", err)
	}

	var db *pgxpool.Pool
	err = pool.Retry(func() (err error) {
		hostPort := resource.GetHostPort("26257/tcp")
		db, err = pgxpool.New(context.Background(), "postgresql://root@"+hostPort+"/defaultdb?sslmode=disable")
		if err != nil {
			return fmt.Errorf("could not open db: %w", err)
		}

		// do not close db

		if err = db.Ping(context.Background()); err != nil {
			return fmt.Errorf("could not ping db: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return db, func() error {
		return pool.Purge(resource)
	}, nil
}

func newTestService(t *testing.T, push PushSender) *Service {
	t.Helper()

	tokens, err := auth.NewCodec("supersecretkeyyoushouldnotcommit", time.Hour)
	if err != nil {
		t.Fatalf("could not create token codec: %v", err)
	}

	svc := New(&Config{
		Cockroach: testCockroach,
		WebPush:   push,
		Tokens:    tokens,
		Logger:    slog.New(slog.DiscardHandler),

		BaseCtx:           context.Background(),
		BackgroundTimeout: 10 * time.Second,
	})
	t.Cleanup(func() {
		_ = svc.Close()
	})

	return svc
}

func loginAs(t *testing.T, svc *Service, username string) (context.Context, types.User) {
	t.Helper()

	out, err := svc.Login(context.Background(), types.Login{Username: username})
	if err != nil {
		t.Fatalf("could not login as %q: %v", username, err)
	}

	return auth.ContextWithUser(context.Background(), out.User), out.User
}

// eventually polls cond until it holds or the deadline passes.
// Notification fan-out runs in the background so tests cannot assert
// its effects right after a send returns.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("condition never held")
}

func notificationsFor(t *testing.T, svc *Service, ctx context.Context) []types.Notification {
	t.Helper()

	page, err := svc.Notifications(ctx, types.ListNotifications{})
	if err != nil {
		t.Fatalf("could not list notifications: %v", err)
	}

	return page.Items
}

func hasNotificationForMessage(nn []types.Notification, messageID string) bool {
	for _, n := range nn {
		if n.MessageID != nil && *n.MessageID == messageID {
			return true
		}
	}
	return false
}

func TestService_ResolveConversation(t *testing.T) {
	svc := newTestService(t, nil)

	aliceCtx, _ := loginAs(t, svc, "resolve_alice")
	_, bob := loginAs(t, svc, "resolve_bob")

	t.Run("concurrent_resolves_land_on_one_conversation", func(t *testing.T) {
		const workers = 8

		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			ids = map[string]int{}
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()

				out, err := svc.ResolveConversation(aliceCtx, types.ResolveConversation{RecipientID: bob.ID})
				if err != nil {
					t.Errorf("could not resolve conversation: %v", err)
					return
				}

				mu.Lock()
				ids[out.ID]++
				mu.Unlock()
			}()
		}
		wg.Wait()

		if len(ids) != 1 {
			t.Fatalf("want every resolve to land on one conversation, got %d distinct IDs", len(ids))
		}
	})

	t.Run("same_conversation_from_either_side", func(t *testing.T) {
		fromAlice, err := svc.ResolveConversation(aliceCtx, types.ResolveConversation{RecipientID: bob.ID})
		if err != nil {
			t.Fatalf("could not resolve from alice: %v", err)
		}
		if !fromAlice.Existing {
			t.Error("want resolve to report the conversation as existing")
		}

		bobCtx := auth.ContextWithUser(context.Background(), bob)
		aliceUser, err := svc.Cockroach.User(context.Background(), types.RetrieveUser{Username: "resolve_alice"})
		if err != nil {
			t.Fatalf("could not fetch alice: %v", err)
		}

		fromBob, err := svc.ResolveConversation(bobCtx, types.ResolveConversation{RecipientID: aliceUser.ID})
		if err != nil {
			t.Fatalf("could not resolve from bob: %v", err)
		}

		if fromAlice.ID != fromBob.ID {
			t.Errorf("want both sides to resolve to the same conversation, got %q and %q", fromAlice.ID, fromBob.ID)
		}
	})

	t.Run("self_conversation_rejected", func(t *testing.T) {
		_, alice := loginAs(t, svc, "resolve_self")
		ctx := auth.ContextWithUser(context.Background(), alice)

		_, err := svc.ResolveConversation(ctx, types.ResolveConversation{RecipientID: alice.ID})
		if !errs.IsInvalidArgument(err) {
			t.Errorf("want invalid argument error, got %v", err)
		}
	})

	t.Run("unknown_recipient_rejected", func(t *testing.T) {
		_, err := svc.ResolveConversation(aliceCtx, types.ResolveConversation{RecipientID: "9m4e2mr0ui3e8a215n4g"})
		if !errs.IsNotFound(err) {
			t.Errorf("want not found error, got %v", err)
		}
	})
}

func TestService_SendMessage(t *testing.T) {
	svc := newTestService(t, nil)

	aliceCtx, _ := loginAs(t, svc, "send_alice")
	bobCtx, bob := loginAs(t, svc, "send_bob")

	t.Run("direct_send_creates_conversation_and_notifies", func(t *testing.T) {
		out, err := svc.SendMessage(aliceCtx, types.SendMessage{
			RecipientID: bob.ID,
			Content:     "hey bob",
		})
		if err != nil {
			t.Fatalf("could not send message: %v", err)
		}

		if !out.ConversationCreated {
			t.Error("want first send to create the conversation")
		}
		if out.ConversationID == "" {
			t.Fatal("want a conversation ID")
		}

		conv, err := svc.Conversation(aliceCtx, types.RetrieveConversation{ConversationID: out.ConversationID})
		if err != nil {
			t.Fatalf("could not fetch conversation: %v", err)
		}
		if conv.MessagesCount != 1 {
			t.Errorf("want messages count 1, got %d", conv.MessagesCount)
		}
		if conv.LastMessagePreview == nil || *conv.LastMessagePreview != "hey bob" {
			t.Errorf("want last message preview %q, got %v", "hey bob", conv.LastMessagePreview)
		}

		eventually(t, func() bool {
			return hasNotificationForMessage(notificationsFor(t, svc, bobCtx), out.Message.ID)
		})

		if hasNotificationForMessage(notificationsFor(t, svc, aliceCtx), out.Message.ID) {
			t.Error("want no notification for the sender")
		}
	})

	t.Run("second_send_reuses_conversation", func(t *testing.T) {
		out, err := svc.SendMessage(aliceCtx, types.SendMessage{
			RecipientID: bob.ID,
			Content:     "hey again",
		})
		if err != nil {
			t.Fatalf("could not send message: %v", err)
		}

		if out.ConversationCreated {
			t.Error("want second send to reuse the existing conversation")
		}
	})

	t.Run("self_send_rejected", func(t *testing.T) {
		_, alice := loginAs(t, svc, "send_self")
		ctx := auth.ContextWithUser(context.Background(), alice)

		_, err := svc.SendMessage(ctx, types.SendMessage{
			RecipientID: alice.ID,
			Content:     "just me",
		})
		if !errs.IsInvalidArgument(err) {
			t.Errorf("want invalid argument error, got %v", err)
		}
	})

	t.Run("direct_conversation_rejects_outsiders", func(t *testing.T) {
		out, err := svc.SendMessage(aliceCtx, types.SendMessage{
			RecipientID: bob.ID,
			Content:     "private",
		})
		if err != nil {
			t.Fatalf("could not send message: %v", err)
		}

		_, eve := loginAs(t, svc, "send_eve")
		eveCtx := auth.ContextWithUser(context.Background(), eve)

		_, err = svc.SendMessage(eveCtx, types.SendMessage{
			ConversationID: out.ConversationID,
			Content:        "let me in",
		})
		if !errs.IsPermissionDenied(err) {
			t.Errorf("want permission denied error, got %v", err)
		}
	})

	t.Run("unauthenticated_send_rejected", func(t *testing.T) {
		_, err := svc.SendMessage(context.Background(), types.SendMessage{
			RecipientID: bob.ID,
			Content:     "anon",
		})
		if !errs.IsUnauthenticated(err) {
			t.Errorf("want unauthenticated error, got %v", err)
		}
	})
}

func TestService_SendMessage_PushProviderDown(t *testing.T) {
	push := &fakePushSender{failing: map[string]bool{"https://push.example.com/down": true}}
	svc := newTestService(t, push)

	aliceCtx, _ := loginAs(t, svc, "pushdown_alice")
	bobCtx, bob := loginAs(t, svc, "pushdown_bob")

	if _, err := svc.RegisterPushToken(bobCtx, types.RegisterPushToken{
		Endpoint: "https://push.example.com/down",
		P256dh:   "p256dh-key",
		Auth:     "auth-secret",
	}); err != nil {
		t.Fatalf("could not register push token: %v", err)
	}

	out, err := svc.SendMessage(aliceCtx, types.SendMessage{
		RecipientID: bob.ID,
		Content:     "can you hear me",
	})
	if err != nil {
		t.Fatalf("want the send to succeed with the provider down, got %v", err)
	}

	eventually(t, func() bool {
		return hasNotificationForMessage(notificationsFor(t, svc, bobCtx), out.Message.ID)
	})

	for _, n := range notificationsFor(t, svc, bobCtx) {
		if n.MessageID != nil && *n.MessageID == out.Message.ID && n.PushSent {
			t.Error("want push_sent unset when every send failed")
		}
	}

	tokens, err := svc.Cockroach.ActivePushTokens(context.Background(), bob.ID)
	if err != nil {
		t.Fatalf("could not list active push tokens: %v", err)
	}
	if len(tokens) != 1 {
		t.Fatalf("want the unreachable token kept active, got %d active tokens", len(tokens))
	}
}

func TestService_SendMessage_FallbackWrite(t *testing.T) {
	svc := newTestService(t, nil)

	aliceCtx, alice := loginAs(t, svc, "fallback_alice")
	_, bob := loginAs(t, svc, "fallback_bob")

	resolved, err := svc.ResolveConversation(aliceCtx, types.ResolveConversation{RecipientID: bob.ID})
	if err != nil {
		t.Fatalf("could not resolve conversation: %v", err)
	}

	in := types.SendMessage{ConversationID: resolved.ID, Content: "landed the hard way"}
	if err := in.Validate(); err != nil {
		t.Fatalf("could not validate message: %v", err)
	}
	in.SetLoggedInUserID(alice.ID)

	msg, err := svc.fallbackSendMessage(aliceCtx, in, resolved.ID)
	if err != nil {
		t.Fatalf("could not write message on the fallback path: %v", err)
	}

	page, err := svc.Messages(aliceCtx, types.ListMessages{ConversationID: resolved.ID})
	if err != nil {
		t.Fatalf("could not list messages: %v", err)
	}

	found := false
	for _, m := range page.Items {
		if m.ID == msg.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("want the message durable")
	}

	// The summary reconcile runs out of band.
	eventually(t, func() bool {
		conv, err := svc.Conversation(aliceCtx, types.RetrieveConversation{ConversationID: resolved.ID})
		if err != nil {
			t.Fatalf("could not fetch conversation: %v", err)
		}
		return conv.MessagesCount == 1 &&
			conv.LastMessagePreview != nil &&
			*conv.LastMessagePreview == "landed the hard way"
	})
}

func TestService_SendMessage_GroupFanout(t *testing.T) {
	svc := newTestService(t, nil)

	aliceCtx, _ := loginAs(t, svc, "group_alice")
	bobCtx, _ := loginAs(t, svc, "group_bob")
	carolCtx, _ := loginAs(t, svc, "group_carol")

	group, err := svc.CreateGroupConversation(aliceCtx)
	if err != nil {
		t.Fatalf("could not create group conversation: %v", err)
	}

	// Group conversations admit on first send.
	for _, ctx := range []context.Context{bobCtx, carolCtx} {
		if _, err := svc.SendMessage(ctx, types.SendMessage{
			ConversationID: group.ID,
			Content:        "joining",
		}); err != nil {
			t.Fatalf("could not join group by sending: %v", err)
		}
	}

	if err := svc.MuteConversation(carolCtx, group.ID, true); err != nil {
		t.Fatalf("could not mute conversation: %v", err)
	}

	out, err := svc.SendMessage(aliceCtx, types.SendMessage{
		ConversationID: group.ID,
		Content:        "morning everyone",
	})
	if err != nil {
		t.Fatalf("could not send group message: %v", err)
	}

	eventually(t, func() bool {
		return hasNotificationForMessage(notificationsFor(t, svc, bobCtx), out.Message.ID)
	})

	if hasNotificationForMessage(notificationsFor(t, svc, carolCtx), out.Message.ID) {
		t.Error("want no notification for the muted participant")
	}
	if hasNotificationForMessage(notificationsFor(t, svc, aliceCtx), out.Message.ID) {
		t.Error("want no notification for the sender")
	}
}

func TestService_DeleteConversation(t *testing.T) {
	svc := newTestService(t, nil)

	aliceCtx, _ := loginAs(t, svc, "delete_alice")
	bobCtx, _ := loginAs(t, svc, "delete_bob")

	group, err := svc.CreateGroupConversation(aliceCtx)
	if err != nil {
		t.Fatalf("could not create group conversation: %v", err)
	}

	if _, err := svc.SendMessage(bobCtx, types.SendMessage{
		ConversationID: group.ID,
		Content:        "joining",
	}); err != nil {
		t.Fatalf("could not join group by sending: %v", err)
	}

	err = svc.DeleteConversation(bobCtx, group.ID)
	if !errs.IsPermissionDenied(err) {
		t.Errorf("want permission denied for non-admin, got %v", err)
	}

	if err := svc.DeleteConversation(aliceCtx, group.ID); err != nil {
		t.Fatalf("could not delete conversation as admin: %v", err)
	}

	_, err = svc.SendMessage(bobCtx, types.SendMessage{
		ConversationID: group.ID,
		Content:        "anyone there?",
	})
	if !errs.IsPermissionDenied(err) {
		t.Errorf("want permission denied sending into a deleted conversation, got %v", err)
	}
}

func TestService_SendMessage_ReplyDropped(t *testing.T) {
	svc := newTestService(t, nil)

	aliceCtx, _ := loginAs(t, svc, "reply_alice")
	_, bob := loginAs(t, svc, "reply_bob")
	_, dan := loginAs(t, svc, "reply_dan")

	withBob, err := svc.SendMessage(aliceCtx, types.SendMessage{
		RecipientID: bob.ID,
		Content:     "original",
	})
	if err != nil {
		t.Fatalf("could not send message: %v", err)
	}

	t.Run("reply_within_conversation_kept", func(t *testing.T) {
		out, err := svc.SendMessage(aliceCtx, types.SendMessage{
			ConversationID:   withBob.ConversationID,
			Content:          "replying",
			ReplyToMessageID: withBob.Message.ID,
		})
		if err != nil {
			t.Fatalf("could not send reply: %v", err)
		}

		if out.Message.ReplyToMessageID == nil || *out.Message.ReplyToMessageID != withBob.Message.ID {
			t.Errorf("want reply reference kept, got %v", out.Message.ReplyToMessageID)
		}
	})

	t.Run("cross_conversation_reply_dropped", func(t *testing.T) {
		out, err := svc.SendMessage(aliceCtx, types.SendMessage{
			RecipientID:      dan.ID,
			Content:          "hi dan",
			ReplyToMessageID: withBob.Message.ID,
		})
		if err != nil {
			t.Fatalf("want the message to go through without the reply, got %v", err)
		}

		if out.Message.ReplyToMessageID != nil {
			t.Errorf("want reply reference dropped, got %v", out.Message.ReplyToMessageID)
		}
		if got := out.Message.Metadata["dropped_reply_to"]; got != withBob.Message.ID {
			t.Errorf("want dropped reference recorded in metadata, got %v", got)
		}
	})

	t.Run("dangling_reply_dropped", func(t *testing.T) {
		out, err := svc.SendMessage(aliceCtx, types.SendMessage{
			ConversationID:   withBob.ConversationID,
			Content:          "replying to nothing",
			ReplyToMessageID: "9m4e2mr0ui3e8a215n4g",
		})
		if err != nil {
			t.Fatalf("want the message to go through without the reply, got %v", err)
		}

		if out.Message.ReplyToMessageID != nil {
			t.Errorf("want reply reference dropped, got %v", out.Message.ReplyToMessageID)
		}
	})
}

type fakePushSender struct {
	mu        sync.Mutex
	gone      map[string]bool
	failing   map[string]bool
	delivered []string
}

func (f *fakePushSender) Enabled() bool { return true }

func (f *fakePushSender) Send(_ context.Context, token types.PushToken, _ []byte, _ types.NotificationPriority) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.gone[token.Endpoint] {
		return webpush.ErrTokenGone
	}
	if f.failing[token.Endpoint] {
		return fmt.Errorf("push endpoint unreachable")
	}

	f.delivered = append(f.delivered, token.Endpoint)
	return nil
}

func TestService_SendNotification(t *testing.T) {
	t.Run("push_disabled_still_succeeds", func(t *testing.T) {
		svc := newTestService(t, nil)

		aliceCtx, _ := loginAs(t, svc, "notify_alice")
		_, bob := loginAs(t, svc, "notify_bob")

		out, err := svc.SendNotification(aliceCtx, types.CreateNotification{
			RecipientID: bob.ID,
			Title:       "Maintenance",
			Body:        "Back in five",
		})
		if err != nil {
			t.Fatalf("could not send notification: %v", err)
		}

		if !out.Success {
			t.Error("want success reported when the provider is disabled")
		}
		if out.PushSent {
			t.Error("want push skipped when the provider is disabled")
		}
		if out.NotificationID == "" {
			t.Error("want the notification persisted regardless")
		}
	})

	t.Run("dead_tokens_deactivated", func(t *testing.T) {
		push := &fakePushSender{gone: map[string]bool{"https://push.example.com/dead": true}}
		svc := newTestService(t, push)

		aliceCtx, _ := loginAs(t, svc, "notify_carol")
		bobCtx, bob := loginAs(t, svc, "notify_dan")

		for _, endpoint := range []string{"https://push.example.com/dead", "https://push.example.com/alive"} {
			if _, err := svc.RegisterPushToken(bobCtx, types.RegisterPushToken{
				Endpoint: endpoint,
				P256dh:   "p256dh-key",
				Auth:     "auth-secret",
			}); err != nil {
				t.Fatalf("could not register push token: %v", err)
			}
		}

		out, err := svc.SendNotification(aliceCtx, types.CreateNotification{
			RecipientID: bob.ID,
			Title:       "Ping",
			Body:        "One device is gone",
		})
		if err != nil {
			t.Fatalf("could not send notification: %v", err)
		}

		if want := (types.NotificationDelivery{
			Success:        true,
			NotificationID: out.NotificationID,
			PushSent:       true,
			SentTo:         1,
			Failed:         1,
			Total:          2,
		}); out != want {
			t.Errorf("want delivery %+v, got %+v", want, out)
		}

		tokens, err := svc.Cockroach.ActivePushTokens(context.Background(), bob.ID)
		if err != nil {
			t.Fatalf("could not list active push tokens: %v", err)
		}
		if len(tokens) != 1 {
			t.Fatalf("want the dead token deactivated, got %d active tokens", len(tokens))
		}
		if tokens[0].Endpoint != "https://push.example.com/alive" {
			t.Errorf("want the alive token to survive, got %q", tokens[0].Endpoint)
		}
		if tokens[0].LastUsedAt == nil {
			t.Error("want the delivered token touched")
		}

		n, err := svc.ReadNotification(bobCtx, types.ReadNotification{NotificationID: out.NotificationID})
		if err != nil {
			t.Fatalf("could not read notification: %v", err)
		}
		if !n.PushSent {
			t.Error("want push_sent stamped after a successful send")
		}
	})

	t.Run("transient_failure_keeps_token", func(t *testing.T) {
		push := &fakePushSender{failing: map[string]bool{"https://push.example.com/flaky": true}}
		svc := newTestService(t, push)

		aliceCtx, _ := loginAs(t, svc, "notify_frank")
		bobCtx, bob := loginAs(t, svc, "notify_grace")

		if _, err := svc.RegisterPushToken(bobCtx, types.RegisterPushToken{
			Endpoint: "https://push.example.com/flaky",
			P256dh:   "p256dh-key",
			Auth:     "auth-secret",
		}); err != nil {
			t.Fatalf("could not register push token: %v", err)
		}

		out, err := svc.SendNotification(aliceCtx, types.CreateNotification{
			RecipientID: bob.ID,
			Title:       "Ping",
			Body:        "The provider is flaky",
		})
		if err != nil {
			t.Fatalf("could not send notification: %v", err)
		}

		if want := (types.NotificationDelivery{
			Success:        true,
			NotificationID: out.NotificationID,
			Failed:         1,
			Total:          1,
		}); out != want {
			t.Errorf("want delivery %+v, got %+v", want, out)
		}

		// A transient failure is not a dead token.
		tokens, err := svc.Cockroach.ActivePushTokens(context.Background(), bob.ID)
		if err != nil {
			t.Fatalf("could not list active push tokens: %v", err)
		}
		if len(tokens) != 1 {
			t.Fatalf("want the flaky token kept active, got %d active tokens", len(tokens))
		}

		n, err := svc.ReadNotification(bobCtx, types.ReadNotification{NotificationID: out.NotificationID})
		if err != nil {
			t.Fatalf("could not read notification: %v", err)
		}
		if n.PushSent {
			t.Error("want push_sent unset when no device took the payload")
		}
	})

	t.Run("unknown_recipient_rejected", func(t *testing.T) {
		svc := newTestService(t, nil)

		aliceCtx, _ := loginAs(t, svc, "notify_eve")

		_, err := svc.SendNotification(aliceCtx, types.CreateNotification{
			RecipientID: "9m4e2mr0ui3e8a215n4g",
			Title:       "Hello",
			Body:        "Anyone there?",
		})
		if !errs.IsNotFound(err) {
			t.Errorf("want not found error, got %v", err)
		}
	})
}

func TestService_Notifications_ReadState(t *testing.T) {
	svc := newTestService(t, nil)

	aliceCtx, _ := loginAs(t, svc, "read_alice")
	bobCtx, bob := loginAs(t, svc, "read_bob")

	out, err := svc.SendNotification(aliceCtx, types.CreateNotification{
		RecipientID: bob.ID,
		Title:       "Unread",
		Body:        "You have mail",
	})
	if err != nil {
		t.Fatalf("could not send notification: %v", err)
	}

	unread, err := svc.HasUnreadNotifications(bobCtx)
	if err != nil {
		t.Fatalf("could not check unread notifications: %v", err)
	}
	if !unread {
		t.Error("want unread notifications before reading")
	}

	first, err := svc.ReadNotification(bobCtx, types.ReadNotification{NotificationID: out.NotificationID})
	if err != nil {
		t.Fatalf("could not read notification: %v", err)
	}
	if !first.Read() {
		t.Error("want the notification marked read")
	}

	// Reading twice keeps the original read timestamp.
	second, err := svc.ReadNotification(bobCtx, types.ReadNotification{NotificationID: out.NotificationID})
	if err != nil {
		t.Fatalf("could not re-read notification: %v", err)
	}
	if second.ReadAt == nil || !second.ReadAt.Equal(*first.ReadAt) {
		t.Errorf("want read_at unchanged on re-read, got %v then %v", first.ReadAt, second.ReadAt)
	}

	unread, err = svc.HasUnreadNotifications(bobCtx)
	if err != nil {
		t.Fatalf("could not check unread notifications: %v", err)
	}
	if unread {
		t.Error("want no unread notifications after reading")
	}

	// Notifications for someone else stay untouched.
	_, err = svc.ReadNotification(aliceCtx, types.ReadNotification{NotificationID: out.NotificationID})
	if !errs.IsNotFound(err) {
		t.Errorf("want not found error for someone else's notification, got %v", err)
	}
}

func TestService_NotificationStream(t *testing.T) {
	svc := newTestService(t, nil)

	aliceCtx, _ := loginAs(t, svc, "stream_alice")
	_, bob := loginAs(t, svc, "stream_bob")

	streamCtx, cancel := context.WithCancel(auth.ContextWithUser(context.Background(), bob))
	defer cancel()

	nn, err := svc.NotificationStream(streamCtx)
	if err != nil {
		t.Fatalf("could not open notification stream: %v", err)
	}

	out, err := svc.SendNotification(aliceCtx, types.CreateNotification{
		RecipientID: bob.ID,
		Title:       "Realtime",
		Body:        "Streamed to you",
	})
	if err != nil {
		t.Fatalf("could not send notification: %v", err)
	}

	select {
	case n := <-nn:
		if n.ID != out.NotificationID {
			t.Errorf("want streamed notification %q, got %q", out.NotificationID, n.ID)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for streamed notification")
	}
}

func TestService_NotificationStream_CancelDuringBroadcast(t *testing.T) {
	svc := newTestService(t, nil)

	_, carol := loginAs(t, svc, "stream_carol")

	streamCtx, cancel := context.WithCancel(auth.ContextWithUser(context.Background(), carol))

	nn, err := svc.NotificationStream(streamCtx)
	if err != nil {
		t.Fatalf("could not open notification stream: %v", err)
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for range nn {
		}
	}()

	// Hammer the topic while the stream shuts down. Broadcast callbacks
	// still in flight must not hit the closed channel.
	var pubs sync.WaitGroup
	for i := range 8 {
		pubs.Go(func() {
			for j := range 50 {
				svc.broadcastNotification(types.Notification{
					ID:     fmt.Sprintf("burst-%d-%d", i, j),
					UserID: carol.ID,
					Title:  "burst",
				})
			}
		})
	}

	cancel()
	pubs.Wait()

	select {
	case <-drained:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the stream to close")
	}
}
