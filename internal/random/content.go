package random

// builtinContent backs the content pool when a tutorial configures no content
// sources. It is an ordinary finite pool: sessions that draw more paragraphs
// than this should configure their own sources.
var builtinContent = []string{
	"Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod\ntempor incididunt ut labore et dolore magna aliqua.",
	"Ut enim ad minim veniam, quis nostrud exercitation ullamco laboris nisi\nut aliquip ex ea commodo consequat.",
	"Duis aute irure dolor in reprehenderit in voluptate velit esse cillum\ndolore eu fugiat nulla pariatur.",
	"Excepteur sint occaecat cupidatat non proident, sunt in culpa qui\nofficia deserunt mollit anim id est laborum.",
	"Sed ut perspiciatis unde omnis iste natus error sit voluptatem\naccusantium doloremque laudantium, totam rem aperiam.",
	"Eaque ipsa quae ab illo inventore veritatis et quasi architecto beatae\nvitae dicta sunt explicabo.",
	"Nemo enim ipsam voluptatem quia voluptas sit aspernatur aut odit aut\nfugit, sed quia consequuntur magni dolores eos.",
	"Qui ratione voluptatem sequi nesciunt, neque porro quisquam est, qui\ndolorem ipsum quia dolor sit amet, consectetur, adipisci velit.",
	"Ut labore et dolore magnam aliquam quaerat voluptatem, ut enim ad\nminima veniam, quis nostrum exercitationem ullam corporis.",
	"Suscipit laboriosam, nisi ut aliquid ex ea commodi consequatur, quis\nautem vel eum iure reprehenderit qui in ea voluptate.",
	"Velit esse quam nihil molestiae consequatur, vel illum qui dolorem eum\nfugiat quo voluptas nulla pariatur.",
	"At vero eos et accusamus et iusto odio dignissimos ducimus qui\nblanditiis praesentium voluptatum deleniti atque corrupti.",
}
