// Command chattest runs the booking assistant in a terminal against
// in-memory storage. Set LLM_PROVIDER=gemini with GOOGLE_API_KEY to try the
// model-driven mode; otherwise the guided flow answers.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/MarkKevinCanonoy/Web-Project/internal/appointments"
	"github.com/MarkKevinCanonoy/Web-Project/internal/assistant"
	"github.com/MarkKevinCanonoy/Web-Project/internal/auth"
	appconfig "github.com/MarkKevinCanonoy/Web-Project/internal/config"
	"github.com/MarkKevinCanonoy/Web-Project/internal/scheduling"
	"github.com/MarkKevinCanonoy/Web-Project/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := appconfig.Load()
	logger := logging.New("error")

	policy, err := cfg.SchedulingPolicy()
	if err != nil {
		log.Fatalf("clinic policy: %v", err)
	}
	calendar := scheduling.NewCalendar(policy, nil)
	appts := appointments.NewService(appointments.NewMemoryRepository(), calendar, logger)

	var opts []assistant.Option
	if cfg.LLMProvider == "gemini" && cfg.GoogleAPIKey != "" {
		client, err := assistant.NewGeminiClient(context.Background(), cfg.GoogleAPIKey, cfg.GeminiModelID)
		if err != nil {
			log.Fatalf("gemini client: %v", err)
		}
		defer client.Close()
		opts = append(opts, assistant.WithLLM(client))
		fmt.Println("Using Gemini", cfg.GeminiModelID)
	} else {
		fmt.Println("Using the guided flow (set LLM_PROVIDER=gemini to use a model)")
	}
	svc := assistant.NewService(appts, assistant.NewMemorySessionStore(cfg.SessionTTL), calendar, logger, opts...)

	actor := actorFromEnv()
	fmt.Printf("Chatting as %s (%s). Type \"quit\" to exit.\n\n", actor.Name, actor.Role)
	if err := run(context.Background(), svc, actor, os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// actorFromEnv reads CHATTEST_ROLE and CHATTEST_NAME; the default is a
// student account.
func actorFromEnv() auth.Principal {
	role, err := auth.ParseRole(os.Getenv("CHATTEST_ROLE"))
	if err != nil {
		role = auth.RoleStudent
	}
	name := strings.TrimSpace(os.Getenv("CHATTEST_NAME"))
	if name == "" {
		name = "Test Student"
	}
	return auth.Principal{UserID: 1, Role: role, Name: name, Email: "student@example.edu"}
}

// run feeds each input line to the assistant until EOF or "quit".
func run(ctx context.Context, svc *assistant.Service, actor auth.Principal, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	sessionID := ""
	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "quit") || strings.EqualFold(line, "exit") {
			return nil
		}
		reply, err := svc.Reply(ctx, actor, sessionID, line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		sessionID = reply.SessionID
		fmt.Fprintf(out, "clinic> %s\n", reply.Response)
		if reply.Refresh {
			fmt.Fprintln(out, "        (appointments changed)")
		}
	}
}
