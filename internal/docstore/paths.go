package docstore

import "path"

// ReviewsCollection is the public review collection of an application.
func ReviewsCollection(appID string) string {
	return path.Join("apps", appID, "public", "data", "reviews")
}

// ProfileDocument is the private profile document of a user.
func ProfileDocument(appID, uid string) string {
	return path.Join("apps", appID, "users", uid, "user_data", "profile")
}
