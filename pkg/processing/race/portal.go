package race

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/mpapenbr/nebula-racers-go/pkg/model"
)

// PortalURL builds the navigation target for a racer entering the portal.
// ref is where the racer comes from, its query is dropped.
func PortalURL(p *model.Portal, r *model.Racer, ref string) string {
	if p == nil || p.URL == "" {
		return ""
	}
	name := r.Name
	if name == "" {
		name = "Player"
	}
	color := r.Color
	if !strings.HasPrefix(color, "#") {
		color = "#" + color
	}
	params := url.Values{}
	params.Set("username", name)
	params.Set("color", color)
	params.Set("speed", strconv.FormatFloat(r.Speed, 'f', 1, 64))
	if ref != "" {
		ref, _, _ = strings.Cut(ref, "?")
		params.Set("ref", ref)
	}

	base, err := url.Parse(p.URL)
	if err != nil {
		return ""
	}
	base.RawQuery = params.Encode()
	return base.String()
}
