package version

import (
	"fmt"
	"strconv"
	"time"
)

var (
	Number       string
	Revision     string
	RevisionTime string
)

func String() string {
	if Number == "" {
		return "netplay: development build"
	}

	return fmt.Sprintf("netplay: v%s-%s", Number, Revision)
}

func HumanRevisionTime() string {
	secs, err := strconv.ParseInt(RevisionTime, 10, 64)
	if err != nil {
		return ""
	}

	return time.Unix(secs, 0).UTC().String()
}
