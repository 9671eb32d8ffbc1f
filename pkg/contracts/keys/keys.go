package keys

import "fmt"

// BroadcastChannel é o canal Redis Pub/Sub dos snapshots de book
const BroadcastChannel = "book_updates_broadcast"

// Book identifica um book: "market:selection". Usado como chave Kafka e nos canais WS.
func Book(marketID, selectionID uint64) string {
	return fmt.Sprintf("%d:%d", marketID, selectionID)
}

// BookCurrent é o hash Redis com o último snapshot do book
func BookCurrent(marketID, selectionID uint64) string {
	return "book:current:" + Book(marketID, selectionID)
}
