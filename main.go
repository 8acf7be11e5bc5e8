/* main.go
 * The "main" method for running the bot. For details about the bot see `readme.md`
 * Usage: go run main.go -db="<database>" -scan="<interval>"
 * Authors: Zachary Bower
 */

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"pickem-bot/api/api"
	"pickem-bot/api/fanout"
	"pickem-bot/api/store"
	"pickem-bot/bot"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Fatal("Error loading .env file")
	}

	// Flags
	dbPtr := flag.String("db", "pickem", "Mongo database name")
	scanPtr := flag.Duration("scan", time.Minute, "Kick-off scan interval")
	testPtr := flag.Bool("test", false, "Use the beta bot token instead of the production one")
	flag.Parse()

	discordToken := os.Getenv("DISCORD_PROD_TOKEN")
	if *testPtr {
		discordToken = os.Getenv("DISCORD_BETA_TOKEN")
	}
	if discordToken == "" {
		log.Fatal("no Discord token configured")
	}

	clock := clockwork.NewRealClock()

	st, err := store.NewStore(*dbPtr, os.Getenv("MONGO_URI"), clock)
	if err != nil {
		log.Fatalf("failed to initialize store: %v", err)
	}
	defer func() {
		if err := st.Client.Disconnect(context.TODO()); err != nil {
			log.Printf("failed to disconnect from mongo: %v", err)
		}
	}()

	// The pick uniqueness index must exist before any traffic is served
	if err := st.EnsureIndexes(context.TODO()); err != nil {
		log.Fatalf("failed to ensure indexes: %v", err)
	}

	session, err := discordgo.New("Bot " + discordToken)
	if err != nil {
		log.Fatalf("failed to create discord session: %v", err)
	}

	// Announcement deliveries pace at one message a second, burst of three, which keeps
	// well under Discord's per-channel limits
	messenger := bot.NewMessenger(session, st)
	fan := fanout.New(messenger, rate.Limit(1), 3, fanout.DefaultDeliveryTimeout)

	apiPtr, err := api.NewAPI(st, fan, clock)
	if err != nil {
		log.Fatalf("failed to initialize API: %v", err)
	}

	b, err := bot.NewBot(apiPtr, clock)
	if err != nil {
		log.Fatalf("failed to initialize bot: %v", err)
	}

	scanner := bot.NewKickoffScanner(apiPtr, clock, *scanPtr)
	if err := scanner.Start(); err != nil {
		log.Fatalf("failed to start kick-off scanner: %v", err)
	}
	defer scanner.Stop()

	if err := b.Run(session); err != nil {
		log.Fatalf("bot stopped: %v", err)
	}
}
