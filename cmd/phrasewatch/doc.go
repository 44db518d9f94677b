// Package main hosts the phrasewatch entrypoint.
//
// Architecture overview:
//   - Configuration: Viper reads defaults, an optional --config file and the environment (PHRASEWATCH_* plus the
//     bare URL, SEARCH_PHRASE, RECIPIENT_TOKEN, MIN_OCCURRENCES and CHECK_INTERVAL names). A .env file in the working
//     directory is loaded first when present.
//   - Fetch: the Colly-based fetcher issues one GET per check with randomized browser headers, a short random pause
//     and retries on 429/5xx and transport errors. fetch.mode=headless swaps in a chromedp renderer for pages that
//     build their text with JavaScript.
//   - Check: goquery strips markup and the monitor counts non-overlapping occurrences of the phrase. Outcomes are
//     found, not_found or failed and are kept in an in-memory status store.
//   - Schedule: robfig/cron runs the check every schedule.interval_minutes after an immediate first run and removes
//     the job once the phrase is found. Panics inside a run are recovered, reported and followed by a pause.
//   - Notify: telepush (default), Pub/Sub or log-only backends receive plain-text messages. Delivery failures are
//     logged and never stop the watch.
//
// Operational notes:
//   - SIGINT/SIGTERM stop the scheduler, wait for an in-flight check and send the stop notification.
//   - server.enabled exposes /healthz, /readyz, /metrics and /v1/status on server.port.
//   - phrasewatch check runs once and exits non-zero when the page could not be checked.
package main
