package gateway

import (
	"context"
	"log/slog"
	"time"
)

// MediaItem is one catalog result rendered as an outbound media sequence.
type MediaItem struct {
	Caption   string
	ImageURLs []string
	VideoURL  string
}

// Dispatcher sends a reply text plus its media sequences through the
// gateway. Sends to the same contact are strictly sequential with a fixed
// delay between them, so the recipient's client shows them in order.
type Dispatcher struct {
	sender    Sender
	delay     time.Duration
	maxImages int
	logger    *slog.Logger

	// sleep is swappable in tests
	sleep func(time.Duration)
}

func NewDispatcher(sender Sender, delay time.Duration, maxImages int, logger *slog.Logger) *Dispatcher {
	if maxImages <= 0 {
		maxImages = 3
	}
	return &Dispatcher{
		sender:    sender,
		delay:     delay,
		maxImages: maxImages,
		logger:    logger,
		sleep:     time.Sleep,
	}
}

// Dispatch sends text first, then each item's images, then video links.
// Every send is best-effort: a failure is logged and the rest of the
// sequence continues. The conversation is persisted by the caller
// regardless of delivery outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, instanceID, phone, text string, items []MediaItem) {
	if text != "" {
		if err := d.sender.SendText(ctx, instanceID, phone, text); err != nil {
			d.logger.Warn("text send failed", "instance", instanceID, "error", err)
		}
	}

	for i, item := range items {
		images := item.ImageURLs
		if len(images) > d.maxImages {
			images = images[:d.maxImages]
		}
		for j, url := range images {
			d.sleep(d.delay)

			// Only the very first image of the batch carries the caption;
			// the text reply already introduces the results.
			caption := ""
			if i == 0 && j == 0 {
				caption = item.Caption
			}
			if err := d.sender.SendImage(ctx, instanceID, phone, url, caption); err != nil {
				d.logger.Warn("image send failed",
					"instance", instanceID, "item", i, "image", j, "error", err)
			}
		}

		if item.VideoURL != "" {
			d.sleep(d.delay)
			if err := d.sender.SendText(ctx, instanceID, phone, item.VideoURL); err != nil {
				d.logger.Warn("video link send failed", "instance", instanceID, "item", i, "error", err)
			}
		}
	}
}
