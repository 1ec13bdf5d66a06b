package web

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/deemkeen/smilodon/util"
	"github.com/gorilla/feeds"
)

// feedLimit caps how many rejections the moderation feed carries.
const feedLimit = 50

// GetModerationFeed renders the most recent rejections as RSS so operators
// can follow moderation decisions from a feed reader. An empty feed is a
// valid feed; a fresh server has simply rejected nothing yet.
func GetModerationFeed(deps *Deps, limit int) (string, error) {
	err, rejections := deps.Store.ReadRecentRejections(limit)
	if err != nil {
		log.Println("Could not get rejections!", err)
		return "", errors.New("error retrieving rejections")
	}

	host := deps.Conf.Conf().Conf.Host
	link := fmt.Sprintf("https://%s/feed/moderation", host)

	feed := &feeds.Feed{
		Title:       fmt.Sprintf("%s moderation decisions", util.Name),
		Link:        &feeds.Link{Href: link},
		Description: "activities recently rejected by the policy pipeline",
		Author:      &feeds.Author{Name: util.Name, Email: fmt.Sprintf("moderation@%s", host)},
		Created:     time.Now(),
	}

	var feedItems []*feeds.Item
	for _, rejection := range *rejections {
		feedItems = append(feedItems,
			&feeds.Item{
				Id:      rejection.Id.String(),
				Title:   fmt.Sprintf("Rejected %s from %s", rejection.ActivityType, rejection.SourceHost),
				Link:    &feeds.Link{Href: link},
				Content: rejection.Reason,
				Author:  &feeds.Author{Name: rejection.SourceHost, Email: fmt.Sprintf("rejected@%s", rejection.SourceHost)},
				Created: rejection.CreatedAt,
			})
	}

	feed.Items = feedItems
	return feed.ToRss()
}
