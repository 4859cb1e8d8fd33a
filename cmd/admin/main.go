package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"supportchat/backend/internal/models"
	"supportchat/backend/internal/storage"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Ops CLI for the support-chat database: inspect the queue, force-close a
// conversation, purge old closed threads for data retention.
func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		log.Fatal("DATABASE_DSN must be set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	storageSvc := storage.NewStorageService(db, nil) // no Redis needed for the CLI

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "list":
		status := ""
		if len(os.Args) > 2 {
			status = os.Args[2]
		}
		previews, err := storageSvc.ListConversations(status)
		if err != nil {
			log.Fatalf("list failed: %v", err)
		}
		for _, p := range previews {
			customer := p.Conversation.CustomerID
			if user, err := storageSvc.GetUserByID(customer); err == nil && user != nil {
				customer = fmt.Sprintf("%s (%s)", user.DisplayName, customer)
			}
			line := fmt.Sprintf("%s  %-7s  customer=%s", p.Conversation.ID, p.Conversation.Status, customer)
			if p.LastMessage != nil {
				line += fmt.Sprintf("  last=%q", truncate(p.LastMessage.Content, 40))
			}
			fmt.Println(line)
		}

	case "close":
		if len(os.Args) < 3 {
			fmt.Println("Usage: admin close <conversation_id>")
			os.Exit(1)
		}
		id := os.Args[2]
		conv, err := storageSvc.GetConversation(id)
		if err != nil {
			log.Fatalf("lookup failed: %v", err)
		}
		if conv == nil {
			log.Fatalf("conversation %s not found", id)
		}
		if conv.IsClosed() {
			fmt.Printf("Conversation %s is already closed.\n", id)
			return
		}
		if err := storageSvc.SetConversationStatus(id, models.ConversationStatusClosed); err != nil {
			log.Fatalf("close failed: %v", err)
		}
		fmt.Printf("Conversation %s closed.\n", id)

	case "purge-closed":
		if len(os.Args) < 3 {
			fmt.Println("Usage: admin purge-closed <days>")
			os.Exit(1)
		}
		days, err := strconv.Atoi(os.Args[2])
		if err != nil || days < 1 {
			fmt.Println("Invalid day count. Please provide a positive integer.")
			os.Exit(1)
		}
		cutoff := time.Now().AddDate(0, 0, -days)
		purged, err := storageSvc.PurgeClosedBefore(cutoff)
		if err != nil {
			log.Fatalf("purge failed: %v", err)
		}
		fmt.Printf("Purged %d closed conversations older than %d days.\n", purged, days)

	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: admin <command> [args]")
	fmt.Println("Commands:")
	fmt.Println("  list [status]         list conversations, optionally filtered by PENDING/OPEN/CLOSED")
	fmt.Println("  close <id>            force-close a conversation")
	fmt.Println("  purge-closed <days>   delete closed conversations older than <days>")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
