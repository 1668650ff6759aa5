// Command inspect dumps the appointment store of a running or stopped
// server in read-only mode. Meant for operators debugging a booking or a
// conversation, not for end users.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"quitcoach/domain"
	"quitcoach/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

type config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" required:"true"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"WARN"`
}

func main() {
	appointmentID := flag.String("appointment", "", "also dump the conversation of this appointment id")
	flag.Parse()

	_ = godotenv.Load()
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	logger := logs.GetLoggerFromString(cfg.LogLevel)

	// BypassLockGuard allows inspection while the server holds the lock.
	opts := badger.DefaultOptions(cfg.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	appointments := collectAppointments(db)
	renderAppointments(appointments)

	if *appointmentID != "" {
		id, err := uuid.Parse(*appointmentID)
		if err != nil {
			log.Fatalf("Invalid appointment id: %v", err)
		}
		messages, err := repositories.NewMessageRepository(db, logger).List(ctx, id)
		if err != nil {
			log.Fatalf("Failed to list messages: %v", err)
		}
		renderMessages(messages)
	}
}

func collectAppointments(db *badger.DB) []domain.Appointment {
	var appts []domain.Appointment
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("appt:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var appt domain.Appointment
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &appt)
			}); err != nil {
				return err
			}
			appts = append(appts, appt)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to scan appointments: %v", err)
	}
	return appts
}

func renderAppointments(appts []domain.Appointment) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Participant", "Coach", "Start", "Min", "Status", "Rating"})
	for _, appt := range appts {
		rating := "-"
		if appt.Rating != nil {
			rating = fmt.Sprintf("%d/5", appt.Rating.Score)
		}
		table.Append([]string{
			appt.ID.String(),
			appt.ParticipantID,
			appt.CoachID,
			appt.ScheduledStart.Format(time.RFC3339),
			fmt.Sprintf("%d", appt.DurationMinutes),
			string(appt.Status),
			rating,
		})
	}
	table.Render()
}

func renderMessages(messages []domain.Message) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Seq", "Sender", "At", "Read P/C", "Text"})
	for _, msg := range messages {
		table.Append([]string{
			fmt.Sprintf("%d", msg.ID),
			string(msg.SenderRole),
			msg.CreatedAt.Format(time.RFC3339),
			fmt.Sprintf("%t/%t", msg.ReadByParticipant, msg.ReadByCoach),
			msg.Text,
		})
	}
	table.Render()
}
