package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	nats "github.com/nats-io/nats.go"
	"github.com/nsyszr/pushbridge/config"
	"github.com/nsyszr/pushbridge/pkg/client/natsio"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type SendHandler struct {
	c *config.Config
}

func newSendHandler(c *config.Config) *SendHandler {
	return &SendHandler{c: c}
}

// Send asks a running bridge to push a payload to a user.
func (h *SendHandler) Send(cmd *cobra.Command, args []string) {
	if len(args) < 2 || len(args) > 3 {
		fmt.Println(cmd.UsageString())
		os.Exit(2)
	}
	setupColoredLogging()

	uid, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		log.Errorf("Invalid user id %q", args[0])
		os.Exit(2)
	}
	payload := json.RawMessage(args[len(args)-1])
	if !json.Valid(payload) {
		log.Error("The payload is not valid JSON")
		os.Exit(2)
	}

	nc, err := nats.Connect(h.c.NATSServerURL)
	if err != nil {
		log.Errorf("An error occurred while connecting to NATS: %s", err)
		os.Exit(1)
	}
	defer nc.Close()

	c := natsio.New(nc, h.c.SubjectPrefix)

	var id int64
	if len(args) == 3 {
		id, err = c.SendToUser(context.Background(), int32(uid), args[1], payload)
	} else {
		id, err = c.Notify(context.Background(), int32(uid), payload)
	}
	if err != nil {
		log.Errorf("An error occurred while sending: %s", err)
		os.Exit(1)
	}
	log.Infof("Queued message %d", id)
}
