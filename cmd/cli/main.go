// Command cli is a local admin helper for the catalog API. Its only job is
// minting bearer tokens against the server's secret, so editors and
// reviewers can be impersonated in local runs; production tokens come from
// the external identity service.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/avelats/polycat/internal/buildinfo"
	"github.com/avelats/polycat/internal/server/auth"
	"github.com/avelats/polycat/internal/server/models"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	var (
		secretKey = flag.String("s", "secretKey", "signing secret, must match the server")
		userID    = flag.String("u", "local-admin", "principal id to assert")
		roles     = flag.String("r", "admin", "comma-separated roles (editor, reviewer, admin)")
		ttl       = flag.Duration("t", 12*time.Hour, "token validity")
	)
	flag.Parse()

	p := models.Principal{ID: *userID}
	for _, role := range strings.Split(*roles, ",") {
		if role = strings.TrimSpace(role); role != "" {
			p.Roles = append(p.Roles, role)
		}
	}

	token, err := auth.GenerateToken(p, []byte(*secretKey), *ttl)
	if err != nil {
		log.Fatalf("%v", err)
	}

	fmt.Println(token)
}
