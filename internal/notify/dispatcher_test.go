package notify_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"chatflow/api/internal/notify"
	"chatflow/api/internal/store"
)

var _ = Describe("Dispatcher", func() {
	var (
		ctx        context.Context
		mockStore  *mockStore
		mailer     *mockMailer
		dispatcher *notify.Dispatcher
	)

	BeforeEach(func() {
		ctx = context.Background()
		mockStore = newMockStore()
		mockStore.users["usr_ann"] = store.User{ID: "usr_ann", DisplayName: "Ann", Email: "ann@example.com"}
		mockStore.users["usr_bob"] = store.User{ID: "usr_bob", DisplayName: "Bob", Email: "bob@example.com"}
		mailer = &mockMailer{configured: true}
		dispatcher = notify.NewDispatcher(mockStore, mailer)
	})

	Describe("Dispatch", func() {
		It("stores one notification per distinct recipient and skips the actor", func() {
			created, err := dispatcher.Dispatch(ctx, notify.Event{
				Kind:         store.NotificationMention,
				WorkspaceID:  "ws_1",
				ActorID:      "usr_carl",
				RecipientIDs: []string{"usr_ann", "usr_carl", "usr_ann", "usr_bob", ""},
				Title:        "Carl mentioned you in #general",
				Body:         "hey <@usr_ann>",
				Link:         "https://chatflow.io/w/acme/c/ch_1",
			})
			dispatcher.Wait()

			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(HaveLen(2))
			Expect(mockStore.inserted).To(HaveLen(2))
			Expect(mockStore.inserted[0].UserID).To(Equal("usr_ann"))
			Expect(mockStore.inserted[0].ID).To(HavePrefix("ntf_"))
			Expect(mockStore.inserted[0].WorkspaceID).To(Equal("ws_1"))
			Expect(mockStore.inserted[1].UserID).To(Equal("usr_bob"))
		})

		It("emails recipients whose preferences allow the kind", func() {
			mockStore.prefs["usr_bob"] = store.NotificationPreferences{UserID: "usr_bob", EmailMentions: false, EmailTaskAssigned: true}

			_, err := dispatcher.Dispatch(ctx, notify.Event{
				Kind:         store.NotificationMention,
				WorkspaceID:  "ws_1",
				RecipientIDs: []string{"usr_ann", "usr_bob"},
				Title:        "You were mentioned",
				Body:         "**hello**",
			})
			dispatcher.Wait()

			Expect(err).NotTo(HaveOccurred())
			sent := mailer.Sent()
			Expect(sent).To(HaveLen(1))
			Expect(sent[0].To).To(Equal("ann@example.com"))
			Expect(sent[0].UserName).To(Equal("Ann"))
			Expect(sent[0].Body).To(Equal("**hello**"))
		})

		It("honours task assignment preferences separately", func() {
			mockStore.prefs["usr_bob"] = store.NotificationPreferences{UserID: "usr_bob", EmailMentions: false, EmailTaskAssigned: true}

			_, err := dispatcher.Dispatch(ctx, notify.Event{
				Kind:         store.NotificationTaskAssigned,
				RecipientIDs: []string{"usr_bob"},
				Title:        "Task assigned",
			})
			dispatcher.Wait()

			Expect(err).NotTo(HaveOccurred())
			Expect(mailer.Sent()).To(HaveLen(1))
		})

		It("does not look up preferences when email is disabled", func() {
			mailer.configured = false

			created, err := dispatcher.Dispatch(ctx, notify.Event{
				Kind:         store.NotificationMention,
				RecipientIDs: []string{"usr_ann"},
			})
			dispatcher.Wait()

			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(HaveLen(1))
			Expect(mockStore.prefsRequests).To(BeZero())
			Expect(mailer.Sent()).To(BeEmpty())
		})

		It("skips the email when the recipient cannot be loaded", func() {
			_, err := dispatcher.Dispatch(ctx, notify.Event{
				Kind:         store.NotificationMention,
				RecipientIDs: []string{"usr_ghost"},
			})
			dispatcher.Wait()

			Expect(err).NotTo(HaveOccurred())
			Expect(mailer.Sent()).To(BeEmpty())
		})

		It("stores without emailing when the event opts out", func() {
			created, err := dispatcher.Dispatch(ctx, notify.Event{
				Kind:         store.NotificationInvitation,
				RecipientIDs: []string{"usr_ann"},
				Title:        "Carl invited you to join Acme",
				SkipEmail:    true,
			})
			dispatcher.Wait()

			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(HaveLen(1))
			Expect(mockStore.prefsRequests).To(BeZero())
			Expect(mailer.Sent()).To(BeEmpty())
		})

		It("propagates store failures", func() {
			mockStore.insertErr = errors.New("db down")

			created, err := dispatcher.Dispatch(ctx, notify.Event{
				Kind:         store.NotificationMention,
				RecipientIDs: []string{"usr_ann"},
			})

			Expect(err).To(MatchError(ContainSubstring("db down")))
			Expect(created).To(BeEmpty())
		})
	})

	Describe("WantsEmail", func() {
		It("maps each kind to its preference", func() {
			prefs := store.NotificationPreferences{EmailMentions: true}
			Expect(notify.WantsEmail(prefs, store.NotificationMention)).To(BeTrue())
			Expect(notify.WantsEmail(prefs, store.NotificationTaskAssigned)).To(BeFalse())
			Expect(notify.WantsEmail(prefs, store.NotificationInvitation)).To(BeFalse())
			Expect(notify.WantsEmail(store.DefaultNotificationPreferences("u"), "unknown")).To(BeFalse())
		})
	})
})

var _ = Describe("Mentions", func() {
	It("parses distinct mentions in order", func() {
		Expect(notify.ParseMentions("hi <@usr_b> and <@usr_a>, again <@usr_b>")).To(Equal([]string{"usr_b", "usr_a"}))
		Expect(notify.ParseMentions("no mentions @here <@>")).To(BeEmpty())
	})

	It("drops the author and non-readers", func() {
		recipients := notify.MentionRecipients("<@usr_a> <@usr_b> <@usr_out>", "usr_a", []string{"usr_a", "usr_b"})
		Expect(recipients).To(Equal([]string{"usr_b"}))
	})

	It("shortens long bodies", func() {
		Expect(notify.Excerpt("short   body\n", 20)).To(Equal("short body"))
		Expect(notify.Excerpt("abcdefghij", 4)).To(Equal("abcd…"))
	})
})
