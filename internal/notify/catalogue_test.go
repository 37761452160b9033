package notify

import (
	"testing"

	"github.com/ema-residences/service-reservation/internal/application"
	notificationDomain "github.com/ema-residences/service-reservation/internal/domain/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleData() application.NotificationData {
	return application.NotificationData{
		RecipientName:  "Amel Host",
		ActorName:      "Rami Renter",
		ListingTitle:   "Sea view flat",
		StayStart:      "2024-06-01",
		StayEnd:        "2024-06-03",
		TotalPrice:     50000,
		CheckInTime:    "15:00",
		Fields:         "notes, paymentStatus",
		PreviousStatus: "confirmed",
	}
}

func TestDefaultCatalogue_CoversEveryDispatchTemplate(t *testing.T) {
	c, err := DefaultCatalogue()
	require.NoError(t, err)

	assert.Equal(t, []string{
		application.TemplateReservationCancelled,
		application.TemplateReservationConfirmed,
		application.TemplateReservationDeleted,
		application.TemplateReservationRequested,
		application.TemplateReservationUpdated,
		application.TemplateStayReminder,
	}, c.Names())

	for _, name := range c.Names() {
		t.Run(name, func(t *testing.T) {
			out, err := c.Render(name, sampleData())
			require.NoError(t, err)
			assert.True(t, out.Type.IsValid())
			assert.NotEmpty(t, out.Title)
			assert.Contains(t, out.Message, "Sea view flat")
			assert.Contains(t, out.Subject, "Sea view flat")
			assert.Contains(t, out.Text, "Hello Amel Host,")
			assert.Contains(t, out.HTML, "<p>Hello Amel Host,</p>")
		})
	}
}

func TestCatalogue_RenderRequested(t *testing.T) {
	c, err := DefaultCatalogue()
	require.NoError(t, err)

	out, err := c.Render(application.TemplateReservationRequested, sampleData())
	require.NoError(t, err)
	assert.Equal(t, notificationDomain.TypeReservation, out.Type)
	assert.Equal(t, "New reservation request", out.Title)
	assert.Equal(t, "Rami Renter requested Sea view flat from 2024-06-01 to 2024-06-03.", out.Message)
	assert.Contains(t, out.Text, "Total: 50000.")
}

func TestCatalogue_FallbacksForUnknownPeople(t *testing.T) {
	c, err := DefaultCatalogue()
	require.NoError(t, err)

	data := sampleData()
	data.RecipientName = ""
	data.ActorName = ""
	out, err := c.Render(application.TemplateReservationCancelled, data)
	require.NoError(t, err)
	assert.Equal(t, notificationDomain.TypeCancellation, out.Type)
	assert.Contains(t, out.Message, "The other party cancelled")
	assert.Contains(t, out.Text, "Hello,")
}

func TestCatalogue_EscapesHTML(t *testing.T) {
	c, err := DefaultCatalogue()
	require.NoError(t, err)

	data := sampleData()
	data.ListingTitle = `<script>alert("x")</script>`
	out, err := c.Render(application.TemplateStayReminder, data)
	require.NoError(t, err)
	assert.NotContains(t, out.HTML, "<script>")
	assert.Contains(t, out.Text, "<script>")
}

func TestCatalogue_UnknownTemplate(t *testing.T) {
	c, err := DefaultCatalogue()
	require.NoError(t, err)

	_, err = c.Render("payment_received", sampleData())
	assert.Error(t, err)
}

func TestLoadCatalogue_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ``},
		{"not a mapping", "- just\n- a list\n"},
		{"bad type", "x:\n  type: sms\n  title: t\n  message: m\n  subject: s\n  text: b\n"},
		{"missing text", "x:\n  type: reminder\n  title: t\n  message: m\n  subject: s\n"},
		{"bad template", "x:\n  type: reminder\n  title: '{{.Title'\n  message: m\n  subject: s\n  text: b\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCatalogue([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalogue_MissingFieldFailsAtRender(t *testing.T) {
	c, err := LoadCatalogue([]byte("x:\n  type: reminder\n  title: '{{.Nope}}'\n  message: m\n  subject: s\n  text: b\n"))
	require.NoError(t, err)

	_, err = c.Render("x", sampleData())
	assert.Error(t, err)
}
