package state

import "sync"

type postKey struct {
	id string
}

type commentKey struct {
	community string
	postID    string
	commentID string
}

// SeenIDs records every post and comment a run has already claimed. A row may
// only be emitted for an id its caller claimed here.
type SeenIDs struct {
	postsMu sync.Mutex
	posts   map[postKey]struct{}

	commentsMu sync.Mutex
	comments   map[commentKey]struct{}
}

func NewSeenIDs() *SeenIDs {
	return &SeenIDs{
		posts:    make(map[postKey]struct{}),
		comments: make(map[commentKey]struct{}),
	}
}

// ClaimPost returns true if id was not seen before and is now claimed by the caller
func (s *SeenIDs) ClaimPost(id string) bool {
	s.postsMu.Lock()
	defer s.postsMu.Unlock()

	k := postKey{id: id}
	if _, ok := s.posts[k]; ok {
		return false
	}
	s.posts[k] = struct{}{}
	return true
}

// ClaimComment returns true if the comment was not seen before and is now claimed
func (s *SeenIDs) ClaimComment(community, postID, commentID string) bool {
	s.commentsMu.Lock()
	defer s.commentsMu.Unlock()

	return s.claimCommentLocked(commentKey{community, postID, commentID})
}

// ClaimComments claims every unseen id of one post and returns the claimed subset
// in input order
func (s *SeenIDs) ClaimComments(community, postID string, commentIDs []string) []string {
	s.commentsMu.Lock()
	defer s.commentsMu.Unlock()

	var fresh []string
	for _, id := range commentIDs {
		if s.claimCommentLocked(commentKey{community, postID, id}) {
			fresh = append(fresh, id)
		}
	}
	return fresh
}

func (s *SeenIDs) claimCommentLocked(k commentKey) bool {
	if _, ok := s.comments[k]; ok {
		return false
	}
	s.comments[k] = struct{}{}
	return true
}

// Counts returns the number of claimed posts and comments
func (s *SeenIDs) Counts() (posts, comments int) {
	s.postsMu.Lock()
	posts = len(s.posts)
	s.postsMu.Unlock()

	s.commentsMu.Lock()
	comments = len(s.comments)
	s.commentsMu.Unlock()
	return posts, comments
}
